package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a backoff wait.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMissingCredential is returned when no API key is configured.
	// Raised before any network activity.
	ErrMissingCredential = errors.New("missing API credential")
)

// RequestError is a classified request failure with its HTTP context.
type RequestError struct {
	StatusCode int
	Kind       Kind
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s request error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a non-retryable client error.
func IsFatal(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == KindFatal
}
