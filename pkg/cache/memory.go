package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store backed by a map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
	}
}

// Get returns the cached response body for the signature.
func (m *MemoryStore) Get(_ context.Context, sig Signature) ([]byte, error) {
	m.mu.RLock()
	body, ok := m.entries[sig.Hash()]
	m.mu.RUnlock()

	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	return body, nil
}

// Put stores a response body for the signature. The first write wins;
// later writes of the same key are ignored.
func (m *MemoryStore) Put(_ context.Context, sig Signature, body []byte) error {
	key := sig.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		return nil
	}

	stored := make([]byte, len(body))
	copy(stored, body)
	m.entries[key] = stored

	CacheSize.WithLabelValues("memory").Add(float64(len(stored)))
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
