package translator

import (
	"context"
	"errors"
	"time"
)

// BackoffFunc returns how long to wait before retry number attempt+1 of the
// same backend. attempt starts at 0.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits (attempt+1)*step.
func LinearBackoff(step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt+1) * step
	}
}

// RetryConfig holds configuration for retrying one backend before moving on.
type RetryConfig struct {
	MaxRetries int // retries after the first attempt
	Backoff    BackoffFunc
}

// DefaultRetryConfig retries twice, waiting 1s then 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		Backoff:    LinearBackoff(time.Second),
	}
}

// IsRetryable reports whether err should be retried against the same backend.
// Rate limits, missing backends and open breakers never are; errors of
// unknown shape are assumed transient.
func IsRetryable(err error) bool {
	return Classify(err).Kind == ResultTransient
}

// Classify maps a client error onto the executor's outcome kinds.
func Classify(err error) ExecResult {
	if err == nil {
		return ExecResult{Kind: ResultOK}
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return ExecResult{
			Kind:       ResultRateLimited,
			KeyID:      rateErr.KeyID,
			StatusCode: rateErr.StatusCode,
			Err:        err,
		}
	}

	switch {
	case errors.Is(err, ErrNotConfigured):
		return ExecResult{Kind: ResultNotConfigured, Err: err}
	case errors.Is(err, ErrBackendUnavailable):
		return ExecResult{Kind: ResultUnavailable, Err: err}
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) && !backendErr.Retryable {
		return ExecResult{Kind: ResultFailed, Err: err}
	}

	return ExecResult{Kind: ResultTransient, Err: err}
}

// sleepContext waits for d or until ctx is done. The goroutine is parked on
// the select, so waiting holds no thread.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
