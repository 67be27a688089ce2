package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Analytics runs aggregation queries over the businesses collection.
type Analytics struct {
	coll *mongo.Collection
}

// NewAnalytics creates an analytics runner over the collection.
func NewAnalytics(coll *mongo.Collection) *Analytics {
	return &Analytics{coll: coll}
}

// CategoryRating is one row of the per-category rating aggregation.
type CategoryRating struct {
	Category      string  `bson:"_id" json:"category"`
	AvgRating     float64 `bson:"avg_rating" json:"avg_rating"`
	NumBusinesses int64   `bson:"num_businesses" json:"num_businesses"`
}

// PriceBucket is one row of the price-level distribution.
type PriceBucket struct {
	Price     string  `bson:"_id" json:"price"`
	Count     int64   `bson:"count" json:"count"`
	AvgRating float64 `bson:"avg_rating" json:"avg_rating"`
}

// RatingReview pairs a rating with its review count.
type RatingReview struct {
	Rating      float64 `bson:"rating" json:"rating"`
	ReviewCount int64   `bson:"review_count" json:"review_count"`
}

// PriceRating pairs an individual rating with its price level.
type PriceRating struct {
	Price  string  `bson:"price" json:"price"`
	Rating float64 `bson:"rating" json:"rating"`
}

// AverageRatingPerCategory returns average rating and business counts per
// category title, for categories with at least minBusinesses entries,
// sorted by rating descending.
func (a *Analytics) AverageRatingPerCategory(ctx context.Context, minBusinesses int) ([]CategoryRating, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$categories"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$categories.title"},
			{Key: "avg_rating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "num_businesses", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{
			{Key: "num_businesses", Value: bson.D{{Key: "$gte", Value: minBusinesses}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avg_rating", Value: -1}}}},
	}

	var results []CategoryRating
	if err := a.run(ctx, pipeline, &results); err != nil {
		return nil, fmt.Errorf("average rating per category: %w", err)
	}
	return results, nil
}

// PriceLevelDistribution returns business counts and average rating per
// price level, sorted by count descending. Missing prices group as Unknown.
func (a *Analytics) PriceLevelDistribution(ctx context.Context) ([]PriceBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.D{
			{Key: "price", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$price", "Unknown"}}}},
			{Key: "rating", Value: 1},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$price"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_rating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}

	var results []PriceBucket
	if err := a.run(ctx, pipeline, &results); err != nil {
		return nil, fmt.Errorf("price level distribution: %w", err)
	}
	return results, nil
}

// RatingReviewPairs returns rating and review_count pairs for correlation
// analysis, filtered to numeric fields and a minimum review count.
func (a *Analytics) RatingReviewPairs(ctx context.Context, minReviewCount int) ([]RatingReview, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "rating", Value: bson.D{{Key: "$type", Value: "number"}}},
			{Key: "review_count", Value: bson.D{{Key: "$type", Value: "number"}}},
		}}},
		{{Key: "$match", Value: bson.D{
			{Key: "review_count", Value: bson.D{{Key: "$gte", Value: minReviewCount}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "rating", Value: 1},
			{Key: "review_count", Value: 1},
		}}},
	}

	var results []RatingReview
	if err := a.run(ctx, pipeline, &results); err != nil {
		return nil, fmt.Errorf("rating review pairs: %w", err)
	}
	return results, nil
}

// RatingsByPriceLevel returns individual ratings with their price level for
// distribution plots.
func (a *Analytics) RatingsByPriceLevel(ctx context.Context) ([]PriceRating, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "rating", Value: 1},
			{Key: "price", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$price", "Unknown"}}}},
		}}},
		{{Key: "$match", Value: bson.D{
			{Key: "rating", Value: bson.D{{Key: "$type", Value: "number"}}},
		}}},
	}

	var results []PriceRating
	if err := a.run(ctx, pipeline, &results); err != nil {
		return nil, fmt.Errorf("ratings by price level: %w", err)
	}
	return results, nil
}

func (a *Analytics) run(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cursor, err := a.coll.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}
