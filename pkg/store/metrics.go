package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// documentsMerged tracks merge results by kind (matched, upserted)
	documentsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_documents_merged_total",
			Help: "Total documents merged into the store by result",
		},
		[]string{"result"},
	)

	// recordsSkipped tracks records dropped for a missing identifier
	recordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_records_skipped_total",
			Help: "Total records dropped before the sink for a missing id",
		},
	)

	// bulkWriteErrors tracks failed bulk writes
	bulkWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_bulk_write_errors_total",
			Help: "Total failed bulk write operations",
		},
	)
)
