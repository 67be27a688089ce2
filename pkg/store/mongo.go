package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDB server error codes for index conflicts.
const (
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// Open connects to MongoDB and returns the businesses collection. The caller
// owns the client and must Disconnect it when done.
func Open(ctx context.Context, uri, database, collection string) (*mongo.Client, *mongo.Collection, error) {
	if uri == "" {
		return nil, nil, fmt.Errorf("mongodb uri is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client, client.Database(database).Collection(collection), nil
}

// EnsureIndexes creates the unique index on the external business id that
// makes upserts idempotent. An index that already exists with a conflicting
// definition is tolerated as non-fatal.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_business_id"),
	})
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) &&
			(cmdErr.Code == codeIndexOptionsConflict || cmdErr.Code == codeIndexKeySpecsConflict) {
			log.Warn().Err(err).Msg("Index already exists with different options, continuing")
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}
