package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested signature has no stored response.
	ErrCacheMiss = errors.New("cache miss")
)

// Store is the contract for a response cache backend.
//
// Implementations must be safe for concurrent use. Put is write-once in
// effect: writing an existing key is a no-op, never an overwrite.
type Store interface {
	// Get returns the cached response body for the signature.
	// Returns ErrCacheMiss if no entry exists.
	Get(ctx context.Context, sig Signature) ([]byte, error)

	// Put stores a successful response body for the signature.
	Put(ctx context.Context, sig Signature, body []byte) error
}
