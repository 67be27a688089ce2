// Package ingest orchestrates the per-location ingestion runs: paginate,
// merge, accumulate a summary, and keep going when a single location fails.
package ingest

import (
	"context"

	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultLocations is the fixed list of major cities ingested when the
// caller supplies none.
var DefaultLocations = []string{
	"New York, NY",
	"San Francisco, CA",
	"Los Angeles, CA",
	"Chicago, IL",
	"Houston, TX",
}

// Collector retrieves every record for one location.
type Collector interface {
	Collect(ctx context.Context, location string, totalLimit int) ([]map[string]any, error)
}

// Sink merges a record batch into the document store.
type Sink interface {
	Merge(ctx context.Context, records []map[string]any) (store.Summary, error)
}

// LocationResult is the outcome for one location. Err is set when the
// location was skipped; its summary is then zero.
type LocationResult struct {
	Location string
	Summary  store.Summary
	Err      error
}

// Result aggregates a whole run.
type Result struct {
	Total     store.Summary
	Locations []LocationResult
}

// Orchestrator runs the pipeline for a list of locations, sequentially.
type Orchestrator struct {
	collector Collector
	sink      Sink
	limit     int
	logger    zerolog.Logger
}

// New creates an orchestrator. perLocationLimit bounds records per location
// and is capped downstream by the paginator.
func New(collector Collector, sink Sink, perLocationLimit int) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		sink:      sink,
		limit:     perLocationLimit,
		logger:    log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run ingests each location in order: collect every page, then merge the
// batch in one sink call. A failed location is logged, recorded with a zero
// summary, and skipped; one unreachable location must not derail the whole
// batch. Only context cancellation stops the run early, and the error it
// returns accompanies the partial Result.
func (o *Orchestrator) Run(ctx context.Context, locations []string) (Result, error) {
	if len(locations) == 0 {
		locations = DefaultLocations
	}

	var result Result
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			o.logger.Warn().
				Str("location", location).
				Msg("Run cancelled, skipping remaining locations")
			return result, err
		}

		summary, err := o.ingestLocation(ctx, location)
		result.Locations = append(result.Locations, LocationResult{
			Location: location,
			Summary:  summary,
			Err:      err,
		})
		result.Total.Add(summary)

		if err != nil {
			o.logger.Error().
				Err(err).
				Str("location", location).
				Msg("Location failed, continuing with next")
			continue
		}

		o.logger.Info().
			Str("location", location).
			Int64("matched", summary.Matched).
			Int64("upserted", summary.Upserted).
			Msg("Location ingested")
	}

	o.logger.Info().
		Int("locations", len(locations)).
		Int64("matched", result.Total.Matched).
		Int64("upserted", result.Total.Upserted).
		Msg("Run complete")

	return result, nil
}

// ingestLocation collects then merges one location. Collection failures
// leave the store untouched for that location: the batch is merged only
// after every page arrived.
func (o *Orchestrator) ingestLocation(ctx context.Context, location string) (store.Summary, error) {
	records, err := o.collector.Collect(ctx, location, o.limit)
	if err != nil {
		return store.Summary{}, err
	}

	return o.sink.Merge(ctx, records)
}
