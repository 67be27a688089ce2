package client

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/andres-troiano/yelp-mongodb-analytics/internal/testutil"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/backoff"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/cache"
)

// fastPolicy keeps test sleeps in the low milliseconds.
func fastPolicy() backoff.Policy {
	p := backoff.DefaultPolicy()
	p.Base = 1 * time.Millisecond
	p.FailureCap = 10 * time.Millisecond
	p.PolitenessCap = 2 * time.Millisecond
	return p
}

func newTestFetcher(t *testing.T, store cache.Store) *Fetcher {
	t.Helper()

	cfg := DefaultConfig("test-api-key", store)
	cfg.Policy = fastPolicy()

	fetcher, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return fetcher
}

func signatureFor(endpoint string, offset int) cache.Signature {
	return cache.Signature{
		Endpoint: endpoint,
		Params: url.Values{
			"term":     []string{"restaurants"},
			"location": []string{"Chicago, IL"},
			"limit":    []string{"50"},
			"offset":   []string{strconv.Itoa(offset)},
		},
	}
}

func TestNew_MissingCredential(t *testing.T) {
	_, err := New(DefaultConfig("", cache.NewMemoryStore()))
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("New with empty key = %v, want ErrMissingCredential", err)
	}
}

func TestFetch_Success(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	store := cache.NewMemoryStore()
	fetcher := newTestFetcher(t, store)

	body, err := fetcher.Fetch(context.Background(), signatureFor(mock.URL(), 0))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("Fetch returned empty body")
	}
	if mock.LastAuthHeader != "Bearer test-api-key" {
		t.Errorf("Authorization = %q, want bearer token", mock.LastAuthHeader)
	}

	// Success must be written back to the cache.
	if store.Len() != 1 {
		t.Errorf("cache Len() = %d, want 1 after success", store.Len())
	}
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	store := cache.NewMemoryStore()
	fetcher := newTestFetcher(t, store)
	sig := signatureFor(mock.URL(), 0)
	ctx := context.Background()

	first, err := fetcher.Fetch(ctx, sig)
	if err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}

	second, err := fetcher.Fetch(ctx, sig)
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}

	if string(first) != string(second) {
		t.Error("cached body differs from fetched body")
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1 (second fetch served from cache)", mock.GetRequestCount())
	}
}

func TestFetch_RetriesRateLimitThenSucceeds(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	mock.Script(testutil.NewRateLimitResponse(0))

	fetcher := newTestFetcher(t, cache.NewMemoryStore())

	body, err := fetcher.Fetch(context.Background(), signatureFor(mock.URL(), 0))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("Fetch returned empty body")
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("request count = %d, want 2 (429 then success)", mock.GetRequestCount())
	}
}

func TestFetch_RetriesTransientThenSucceeds(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	mock.Script(testutil.NewServerErrorResponse(), testutil.NewServerErrorResponse())

	fetcher := newTestFetcher(t, cache.NewMemoryStore())

	_, err := fetcher.Fetch(context.Background(), signatureFor(mock.URL(), 0))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("request count = %d, want 3 (two 500s then success)", mock.GetRequestCount())
	}
}

func TestFetch_FatalNoRetry(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	mock.Script(testutil.NewUnauthorizedResponse())

	store := cache.NewMemoryStore()
	fetcher := newTestFetcher(t, store)

	_, err := fetcher.Fetch(context.Background(), signatureFor(mock.URL(), 0))
	if !IsFatal(err) {
		t.Fatalf("Fetch = %v, want fatal RequestError", err)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1 (no retry on 401)", mock.GetRequestCount())
	}
	if store.Len() != 0 {
		t.Errorf("cache Len() = %d, want 0 (failures are never cached)", store.Len())
	}
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	// More failures than the 5-attempt budget.
	mock.Script(
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
	)

	fetcher := newTestFetcher(t, cache.NewMemoryStore())

	_, err := fetcher.Fetch(context.Background(), signatureFor(mock.URL(), 0))
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Fetch = %v, want ErrRetryExhausted", err)
	}
	if mock.GetRequestCount() != 5 {
		t.Errorf("request count = %d, want 5 (full attempt budget)", mock.GetRequestCount())
	}
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	mock := testutil.NewMockSearch(5)
	defer mock.Close()

	mock.Script(testutil.NewRateLimitResponse(30)) // long server hint

	cfg := DefaultConfig("test-api-key", cache.NewMemoryStore())
	cfg.Policy = fastPolicy()
	fetcher, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = fetcher.Fetch(ctx, signatureFor(mock.URL(), 0))
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("Fetch = %v, want ErrContextCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v, should abort the 30s hint promptly", elapsed)
	}
}

func TestFetch_DelayRelaxesAfterSuccess(t *testing.T) {
	mock := testutil.NewMockSearch(200)
	defer mock.Close()

	fetcher := newTestFetcher(t, cache.NewMemoryStore())
	ctx := context.Background()

	// Drive the ramp up with failures, then confirm successes relax it.
	mock.Script(testutil.NewServerErrorResponse(), testutil.NewServerErrorResponse())
	if _, err := fetcher.Fetch(ctx, signatureFor(mock.URL(), 0)); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	ramped := fetcher.Delay()
	sig := cache.Signature{
		Endpoint: mock.URL(),
		Params:   url.Values{"offset": []string{"50"}, "limit": []string{"50"}},
	}
	if _, err := fetcher.Fetch(ctx, sig); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if fetcher.Delay() > ramped {
		t.Errorf("delay = %v after success, want <= ramped delay %v", fetcher.Delay(), ramped)
	}
}
