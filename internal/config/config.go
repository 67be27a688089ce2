// Package config loads pipeline configuration from environment variables.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

var (
	// ErrMissingAPIKey is returned when YELP_API_KEY is not set. Ingestion
	// fails fast on it before any request is attempted.
	ErrMissingAPIKey = errors.New("YELP_API_KEY is not set")

	// ErrMissingMongoURI is returned when MONGODB_URI is not set.
	ErrMissingMongoURI = errors.New("MONGODB_URI is not set")
)

// Config holds the pipeline configuration.
type Config struct {
	// APIKey is the search API Bearer token.
	APIKey string `env:"YELP_API_KEY"`

	// MongoURI is the MongoDB connection string.
	MongoURI string `env:"MONGODB_URI"`

	// DBName is the MongoDB database name.
	DBName string `env:"DB_NAME" envDefault:"yelp_analytics"`

	// CollectionName is the MongoDB collection name.
	CollectionName string `env:"COLLECTION_NAME" envDefault:"businesses"`

	// RedisAddr enables the Redis-backed response cache when set;
	// empty falls back to the in-memory cache.
	RedisAddr string `env:"REDIS_ADDR"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ValidateIngest checks the fields ingestion requires. Analysis-only
// commands need just the store and skip the API key check.
func (c Config) ValidateIngest() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return c.ValidateStore()
}

// ValidateStore checks the document store connection fields.
func (c Config) ValidateStore() error {
	if c.MongoURI == "" {
		return ErrMissingMongoURI
	}
	return nil
}
