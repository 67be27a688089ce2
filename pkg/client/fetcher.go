// Package client provides the rate-limited search API fetcher with response
// caching, retry with backoff, and error classification.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/backoff"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for fetcher operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_requests_total",
		Help: "Total search API requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_request_duration_seconds",
		Help:    "Search API request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_retries_total",
		Help: "Total number of retry attempts by outcome",
	}, []string{"outcome"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_retry_backoff_seconds",
		Help:    "Backoff duration before retries by outcome",
		Buckets: []float64{0.2, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_retry_exhausted_total",
		Help: "Total number of requests that exhausted their retry budget",
	})
)

// Config holds the fetcher configuration.
type Config struct {
	// APIKey is the Bearer token for the search API (REQUIRED).
	APIKey string

	// UserAgent identifies this client to the API.
	UserAgent string

	// Cache stores successful response bodies. Required.
	Cache cache.Store

	// Policy governs backoff and the retry budget.
	Policy backoff.Policy

	// HTTPTimeout bounds each individual network call.
	HTTPTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string, store cache.Store) Config {
	return Config{
		APIKey:      apiKey,
		UserAgent:   "yelp-mongodb-analytics/0.1.0",
		Cache:       store,
		Policy:      backoff.DefaultPolicy(),
		HTTPTimeout: 30 * time.Second,
	}
}

// Fetcher performs single logical requests against the search API: cache
// check, network call with retry and backoff, cache write on success, and a
// politeness delay between successive calls.
//
// A Fetcher carries mutable delay state and is not safe for concurrent use;
// create one per ingestion run so backoff ramps stay per-target.
type Fetcher struct {
	httpClient *http.Client
	store      cache.Store
	policy     backoff.Policy
	state      backoff.State
	apiKey     string
	userAgent  string
	logger     zerolog.Logger
}

// New creates a fetcher. Fails fast when no credential is configured.
func New(cfg Config) (*Fetcher, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	logger := log.With().Str("component", "fetcher").Logger()

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		store:     cfg.Cache,
		policy:    cfg.Policy,
		state:     cfg.Policy.Initial(),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}, nil
}

// Fetch performs one logical request for the signature. A cache hit returns
// immediately with no network call and no delay. Otherwise the fetcher loops
// up to the retry budget, classifying each attempt once and reacting per
// class: rate limits sleep out the server hint, transient failures escalate
// the backoff ramp, fatal client errors abort without retry. Successful
// bodies are written back to the cache before the politeness delay.
func (f *Fetcher) Fetch(ctx context.Context, sig cache.Signature) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	cached, err := f.store.Get(ctx, sig)
	if err == nil {
		f.logger.Debug().
			Str("key", sig.Hash()).
			Msg("Cache hit")
		requestsTotal.WithLabelValues("cache_hit").Inc()
		return cached, nil
	}
	if err != cache.ErrCacheMiss {
		f.logger.Warn().Err(err).Str("key", sig.Hash()).Msg("Cache get error")
	}

	var lastErr error

	for attempt := 1; ; attempt++ {
		out := f.attempt(ctx, sig)

		switch out.Kind {
		case KindSuccess:
			requestsTotal.WithLabelValues(fmt.Sprintf("%d", out.StatusCode)).Inc()
			if err := f.store.Put(ctx, sig, out.Body); err != nil {
				f.logger.Warn().Err(err).Msg("Failed to cache response")
			}
			if attempt > 1 {
				f.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			f.state = f.policy.Relax(f.state)
			f.politenessDelay(ctx)
			return out.Body, nil

		case KindFatal:
			requestsTotal.WithLabelValues(fmt.Sprintf("%d", out.StatusCode)).Inc()
			f.logger.Warn().
				Int("status_code", out.StatusCode).
				Msg("Non-retryable client error")
			return nil, &RequestError{
				StatusCode: out.StatusCode,
				Kind:       KindFatal,
				Message:    http.StatusText(out.StatusCode),
			}

		case KindRateLimited:
			requestsTotal.WithLabelValues("429").Inc()
			lastErr = &RequestError{
				StatusCode: out.StatusCode,
				Kind:       KindRateLimited,
				Message:    http.StatusText(out.StatusCode),
			}
			if f.policy.Exhausted(attempt) {
				return nil, f.exhausted(attempt, lastErr)
			}
			f.state = f.policy.NextRateLimited(f.state, out.RetryAfter)
			f.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", f.state.Delay).
				Dur("retry_after", out.RetryAfter).
				Msg("Rate limited, backing off")
			if err := f.wait(ctx, out.Kind, attempt); err != nil {
				return nil, err
			}

		case KindTransient:
			requestsTotal.WithLabelValues("transient_error").Inc()
			lastErr = out.Err
			if lastErr == nil {
				lastErr = &RequestError{
					StatusCode: out.StatusCode,
					Kind:       KindTransient,
					Message:    http.StatusText(out.StatusCode),
				}
			}
			if f.policy.Exhausted(attempt) {
				return nil, f.exhausted(attempt, lastErr)
			}
			f.state = f.policy.NextTransient(f.state)
			f.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", f.state.Delay).
				Msg("Transient failure, backing off")
			if err := f.wait(ctx, out.Kind, attempt); err != nil {
				return nil, err
			}
		}
	}
}

// attempt issues one network call and classifies the result.
func (f *Fetcher) attempt(ctx context.Context, sig cache.Signature) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sig.Endpoint, nil)
	if err != nil {
		return Outcome{Kind: KindTransient, Err: err}
	}
	req.URL.RawQuery = sig.Params.Encode()
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	return Classify(resp, err)
}

// wait blocks for the current backoff delay, honoring context cancellation.
func (f *Fetcher) wait(ctx context.Context, kind Kind, attempt int) error {
	retriesTotal.WithLabelValues(string(kind)).Inc()
	retryBackoffSeconds.WithLabelValues(string(kind)).Observe(f.state.Delay.Seconds())

	select {
	case <-ctx.Done():
		f.logger.Warn().
			Int("attempt", attempt).
			Msg("Context cancelled during backoff")
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-time.After(f.state.Delay):
		return nil
	}
}

// politenessDelay pauses between successive requests after a success. The
// request already completed, so cancellation here only shortens the pause.
func (f *Fetcher) politenessDelay(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(f.state.Delay):
	}
}

func (f *Fetcher) exhausted(attempts int, lastErr error) error {
	retryExhaustedTotal.Inc()
	f.logger.Warn().
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")
	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempts, lastErr)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// Delay returns the current inter-request delay (for testing).
func (f *Fetcher) Delay() time.Duration {
	return f.state.Delay
}
