package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures a BreakerClient.
type BreakerConfig struct {
	Failures int           // Consecutive failures that open the breaker
	Timeout  time.Duration // How long it stays open (default: 60s)
}

// BreakerClient wraps a Client with a circuit breaker. While the breaker is
// open calls fail fast with translator.ErrBackendUnavailable, which the
// fallback chain treats as "move on" without retrying.
type BreakerClient struct {
	name   string
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps client. Rate limits and cancellations do not count
// as failures: suspensions already deal with the former.
func NewBreakerClient(name string, client Client, cfg BreakerConfig, logger zerolog.Logger) *BreakerClient {
	failures := cfg.Failures
	if failures <= 0 {
		failures = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var rateErr *RateLimitError
			return errors.As(err, &rateErr) || errors.Is(err, context.Canceled) ||
				errors.Is(err, translator.ErrThrottleDeadline)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("backend", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &BreakerClient{
		name:   name,
		client: client,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Translate implements Client.
func (b *BreakerClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.client.Translate(ctx, text, from, to)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%s: %w: %v", b.name, translator.ErrBackendUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State returns the breaker state ("closed", "open", "half-open").
func (b *BreakerClient) State() string {
	return b.cb.State().String()
}

var _ Client = (*BreakerClient)(nil)
