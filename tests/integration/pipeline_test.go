package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/andres-troiano/yelp-mongodb-analytics/internal/testutil"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/backoff"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/cache"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/client"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/ingest"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/pagination"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/store"
)

// memorySink applies upsert-by-id semantics in memory, standing in for the
// MongoDB sink so the whole pipeline runs against the mock API.
type memorySink struct {
	docs map[string]map[string]any
}

func newMemorySink() *memorySink {
	return &memorySink{docs: make(map[string]map[string]any)}
}

func (s *memorySink) Merge(_ context.Context, records []map[string]any) (store.Summary, error) {
	var summary store.Summary
	for _, record := range records {
		id, ok := record["id"].(string)
		if !ok || id == "" {
			continue
		}
		if _, exists := s.docs[id]; exists {
			summary.Matched++
		} else {
			summary.Upserted++
		}
		s.docs[id] = record
	}
	return summary, nil
}

func newPipeline(t *testing.T, mock *testutil.MockSearch, responseCache cache.Store, sink ingest.Sink, limit int) *ingest.Orchestrator {
	t.Helper()

	policy := backoff.DefaultPolicy()
	policy.Base = 1 * time.Millisecond
	policy.FailureCap = 10 * time.Millisecond
	policy.PolitenessCap = 2 * time.Millisecond

	cfg := client.DefaultConfig("integration-test-key", responseCache)
	cfg.Policy = policy

	fetcher, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	pageCfg := pagination.DefaultConfig()
	pageCfg.Endpoint = mock.URL()
	collector := pagination.NewCollector(fetcher, pageCfg)

	return ingest.New(collector, sink, limit)
}

// TestPipeline_EndToEnd runs the full fetch -> paginate -> merge chain
// against the mock search API.
func TestPipeline_EndToEnd(t *testing.T) {
	mock := testutil.NewMockSearch(87)
	defer mock.Close()

	sink := newMemorySink()
	orchestrator := newPipeline(t, mock, cache.NewMemoryStore(), sink, 120)

	result, err := orchestrator.Run(context.Background(), []string{"Chicago, IL"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Total.Upserted != 87 || result.Total.Matched != 0 {
		t.Errorf("total = %+v, want {matched: 0, upserted: 87}", result.Total)
	}
	if len(sink.docs) != 87 {
		t.Errorf("stored docs = %d, want 87", len(sink.docs))
	}
	for id, doc := range sink.docs {
		if doc["search_location"] != "Chicago, IL" {
			t.Fatalf("doc %s search_location = %v", id, doc["search_location"])
		}
		if doc["fetched_at"] == nil {
			t.Fatalf("doc %s missing fetched_at", id)
		}
	}
}

// TestPipeline_RerunIsIdempotent reruns the same ingestion with a shared
// cache and store: the second run hits only the cache and every count
// shifts into matched.
func TestPipeline_RerunIsIdempotent(t *testing.T) {
	mock := testutil.NewMockSearch(60)
	defer mock.Close()

	responseCache := cache.NewMemoryStore()
	sink := newMemorySink()
	ctx := context.Background()

	first, err := newPipeline(t, mock, responseCache, sink, 100).Run(ctx, []string{"Houston, TX"})
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	requestsAfterFirst := mock.GetRequestCount()

	second, err := newPipeline(t, mock, responseCache, sink, 100).Run(ctx, []string{"Houston, TX"})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.Total.Upserted != 60 {
		t.Errorf("first total = %+v, want 60 upserted", first.Total)
	}
	if second.Total.Matched != 60 || second.Total.Upserted != 0 {
		t.Errorf("second total = %+v, want {matched: 60, upserted: 0}", second.Total)
	}
	if mock.GetRequestCount() != requestsAfterFirst {
		t.Errorf("request count grew from %d to %d, rerun should be served from cache",
			requestsAfterFirst, mock.GetRequestCount())
	}
}

// TestPipeline_SurvivesRateLimiting injects 429s ahead of every page and
// verifies the run still completes.
func TestPipeline_SurvivesRateLimiting(t *testing.T) {
	mock := testutil.NewMockSearch(30)
	defer mock.Close()

	mock.Script(
		testutil.NewRateLimitResponse(0),
		testutil.NewServerErrorResponse(),
	)

	sink := newMemorySink()
	orchestrator := newPipeline(t, mock, cache.NewMemoryStore(), sink, 100)

	result, err := orchestrator.Run(context.Background(), []string{"Chicago, IL"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Total.Upserted != 30 {
		t.Errorf("total = %+v, want 30 upserted despite throttling", result.Total)
	}
}

// TestPipeline_FailedLocationSkipped exhausts retries for the first
// location and verifies the second still ingests.
func TestPipeline_FailedLocationSkipped(t *testing.T) {
	mock := testutil.NewMockSearch(10)
	defer mock.Close()

	// Enough consecutive failures to exhaust the 5-attempt budget.
	failures := make([]testutil.ScriptedResponse, 5)
	for i := range failures {
		failures[i] = testutil.NewServerErrorResponse()
	}
	mock.Script(failures...)

	sink := newMemorySink()
	orchestrator := newPipeline(t, mock, cache.NewMemoryStore(), sink, 100)

	result, err := orchestrator.Run(context.Background(), []string{"Atlantis", "Houston, TX"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Locations[0].Err == nil {
		t.Error("first location should have failed")
	}
	if result.Locations[1].Err != nil {
		t.Errorf("second location failed: %v", result.Locations[1].Err)
	}
	if result.Total.Upserted != 10 {
		t.Errorf("total = %+v, want 10 upserted from the healthy location", result.Total)
	}
}

// TestPipeline_ManyLocations exercises summary accumulation across a batch.
func TestPipeline_ManyLocations(t *testing.T) {
	mock := testutil.NewMockSearch(25)
	defer mock.Close()

	sink := newMemorySink()
	orchestrator := newPipeline(t, mock, cache.NewMemoryStore(), sink, 100)

	locations := make([]string, 4)
	for i := range locations {
		locations[i] = fmt.Sprintf("City %d", i)
	}

	result, err := orchestrator.Run(context.Background(), locations)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The mock serves the same 25 ids for every location, so the first
	// location upserts and the rest match.
	if result.Total.Upserted != 25 {
		t.Errorf("upserted = %d, want 25", result.Total.Upserted)
	}
	if result.Total.Matched != 75 {
		t.Errorf("matched = %d, want 75", result.Total.Matched)
	}
}
