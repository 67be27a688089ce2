// Package metrics provides the Prometheus registry reference and HTTP
// handler for the ingestion pipeline. All metrics are defined in their
// respective packages (client, cache, store) via promauto to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the default registry, for the
// CLI's --metrics-addr listener.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ingest_requests_total{status} (Counter): Requests by HTTP status, plus
//     "cache_hit" and "transient_error" pseudo-statuses
//   - ingest_request_duration_seconds (Histogram): Logical request duration,
//     including retries and backoff sleeps
//
// Retry Metrics (pkg/client):
//   - ingest_retries_total{outcome} (Counter): Retry attempts by outcome
//     (rate_limited, transient)
//   - ingest_retry_backoff_seconds{outcome} (Histogram): Backoff duration
//     before retries
//   - ingest_retry_exhausted_total (Counter): Requests that spent the full
//     retry budget
//
// Cache Metrics (pkg/cache):
//   - ingest_cache_hits_total{backend} (Counter): Response cache hits
//   - ingest_cache_misses_total (Counter): Response cache misses
//   - ingest_cache_size_bytes{backend} (Gauge): Bytes stored in the cache
//   - ingest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Store Metrics (pkg/store):
//   - ingest_documents_merged_total{result} (Counter): Documents merged by
//     result (matched, upserted)
//   - ingest_records_skipped_total (Counter): Records dropped for missing id
//   - ingest_bulk_write_errors_total (Counter): Failed bulk writes
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ingest_cache_hits_total[5m])) /
//   (sum(rate(ingest_cache_hits_total[5m])) + sum(rate(ingest_cache_misses_total[5m])))
//
//   # Retry Pressure
//   rate(ingest_retries_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ingest_request_duration_seconds_bucket[5m]))
//
//   # Upsert Throughput
//   rate(ingest_documents_merged_total{result="upserted"}[5m])
