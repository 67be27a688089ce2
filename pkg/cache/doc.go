// Package cache provides a content-addressed store for raw search API
// responses.
//
// A response is keyed by a hash of its request Signature (endpoint plus
// query parameters), so semantically identical requests always hit the same
// entry regardless of how their parameters were assembled. Entries are
// write-once and never expire: the key already encodes every input that
// could change the response, so there is nothing to invalidate. Only
// successful response bodies are stored; a missing key means the request
// has not yet been fetched successfully.
//
// Two backends implement the Store contract: MemoryStore for tests and
// single-run usage, and RedisStore for durable caching shared across runs.
// Both are safe for concurrent use; RedisStore relies on SETNX so
// concurrent writers of the same key cannot produce a partial entry.
package cache
