package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces pipeline cache entries in a shared Redis instance.
const keyPrefix = "searchcache:"

// RedisStore is a Store backed by Redis, for caches shared across runs.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get returns the cached response body for the signature.
// Returns ErrCacheMiss if the key doesn't exist.
func (r *RedisStore) Get(ctx context.Context, sig Signature) ([]byte, error) {
	data, err := r.redis.Get(ctx, keyPrefix+sig.Hash()).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return data, nil
}

// Put stores a response body for the signature. SETNX guarantees atomic
// create: a concurrent writer of the same key loses cleanly and no partial
// entry is ever visible. Entries carry no TTL.
func (r *RedisStore) Put(ctx context.Context, sig Signature, body []byte) error {
	ok, err := r.redis.SetNX(ctx, keyPrefix+sig.Hash(), body, 0).Result()
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis setnx: %w", err)
	}

	if ok {
		CacheSize.WithLabelValues("redis").Add(float64(len(body)))
	}
	return nil
}
