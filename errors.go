package translator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means no client is registered under the requested backend name.
	ErrNotConfigured = errors.New("backend not configured")

	// ErrBackendUnavailable means a client refused the call without trying,
	// for example because its circuit breaker is open.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrAllBackendsExhausted is returned by the fallback chain when no backend produced a translation.
	ErrAllBackendsExhausted = errors.New("all translation backends exhausted")
)

// TranslationError is the base error type for translation failures.
type TranslationError struct {
	Message string
	Cause   error
}

func (e *TranslationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// RateLimitError reports that a backend (or one of its API keys) answered
// with a rate-limit response. The fallback chain suspends the backend or key
// instead of retrying.
type RateLimitError struct {
	Backend    string
	KeyID      string // empty for single-key backends
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	target := e.Backend
	if e.KeyID != "" {
		target = SuspensionKey(e.Backend, e.KeyID)
	}
	if e.Message != "" {
		return fmt.Sprintf("rate limited by %s (HTTP %d): %s", target, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rate limited by %s (HTTP %d)", target, e.StatusCode)
}

// BackendError indicates a backend failure other than rate limiting
// (network error, 5xx, malformed response).
type BackendError struct {
	Backend   string
	Message   string
	Cause     error
	Retryable bool // Whether the same backend may be tried again
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %s: %s", e.Backend, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}
