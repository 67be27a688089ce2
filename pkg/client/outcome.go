package client

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies the result of one network attempt. The classification is
// decided once, here, and drives all retry and error handling downstream.
type Kind string

const (
	// KindSuccess is a 2xx response with a readable body.
	KindSuccess Kind = "success"

	// KindRateLimited is a 429 response, optionally carrying a Retry-After hint.
	KindRateLimited Kind = "rate_limited"

	// KindFatal is a non-retryable client error (4xx other than 429).
	KindFatal Kind = "fatal"

	// KindTransient is a retryable failure: 5xx or a network-level error.
	KindTransient Kind = "transient"
)

// Outcome is the classified result of a single request attempt.
type Outcome struct {
	Kind       Kind
	StatusCode int

	// Body is the response payload, set only on success.
	Body []byte

	// RetryAfter is the server-supplied wait hint, set only on rate-limited
	// responses that carry a Retry-After header. Zero means no hint.
	RetryAfter time.Duration

	// Err is the underlying error for transient network failures.
	Err error
}

// Classify turns an HTTP response (or transport error) into an Outcome.
// It consumes and closes the response body.
func Classify(resp *http.Response, err error) Outcome {
	if err != nil {
		return Outcome{Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return Outcome{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
		}

	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Outcome{Kind: KindTransient, StatusCode: resp.StatusCode}

	case resp.StatusCode >= 400:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Outcome{Kind: KindFatal, StatusCode: resp.StatusCode}
	}

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		// A truncated body is as retryable as a dropped connection.
		return Outcome{Kind: KindTransient, StatusCode: resp.StatusCode, Err: readErr}
	}

	return Outcome{Kind: KindSuccess, StatusCode: resp.StatusCode, Body: body}
}

// parseRetryAfter reads an integer-seconds Retry-After header.
// Returns 0 when the header is absent or malformed.
func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
