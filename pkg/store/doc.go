// Package store merges fetched business records into MongoDB and runs the
// analytical aggregations over the stored collection.
//
// Records are identified by their external `id` field. The sink issues one
// unordered bulk upsert per batch: an existing document is updated in place,
// a missing one is inserted. Re-running the same batch converges to the same
// documents with all counts shifting into matched, which is what makes
// repeated ingestion runs safe.
package store
