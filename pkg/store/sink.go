package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// bulkWriter is the slice of *mongo.Collection the sink needs. It exists so
// Merge can be exercised against a fake in tests.
type bulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel,
		opts ...options.Lister[options.BulkWriteOptions]) (*mongo.BulkWriteResult, error)
}

// Sink merges record batches into the document store by external id.
type Sink struct {
	writer bulkWriter
	logger zerolog.Logger
}

// NewSink creates a sink over the businesses collection.
func NewSink(coll *mongo.Collection) *Sink {
	return newSink(coll)
}

func newSink(writer bulkWriter) *Sink {
	return &Sink{
		writer: writer,
		logger: log.With().Str("component", "sink").Logger(),
	}
}

// Merge upserts a batch of records by their `id` field in one unordered bulk
// write. Records without a usable id are silently skipped and excluded from
// both counts. An empty or all-invalid batch issues no write and returns a
// zero summary. Merging the same batch again is idempotent: documents
// converge to the latest fetched state and the counts shift into Matched.
func (s *Sink) Merge(ctx context.Context, records []map[string]any) (Summary, error) {
	models := make([]mongo.WriteModel, 0, len(records))
	for _, record := range records {
		id, ok := record["id"].(string)
		if !ok || id == "" {
			recordsSkipped.Inc()
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "id", Value: id}}).
			SetUpdate(bson.D{{Key: "$set", Value: record}}).
			SetUpsert(true))
	}

	if len(models) == 0 {
		return Summary{}, nil
	}

	result, err := s.writer.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		bulkWriteErrors.Inc()
		return Summary{}, fmt.Errorf("bulk write: %w", err)
	}

	summary := Summary{
		Matched:  result.MatchedCount,
		Upserted: result.UpsertedCount,
	}

	documentsMerged.WithLabelValues("matched").Add(float64(summary.Matched))
	documentsMerged.WithLabelValues("upserted").Add(float64(summary.Upserted))

	s.logger.Debug().
		Int("batch", len(records)).
		Int("written", len(models)).
		Int64("matched", summary.Matched).
		Int64("upserted", summary.Upserted).
		Msg("Batch merged")

	return summary, nil
}
