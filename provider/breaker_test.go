package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/rs/zerolog"
)

func TestBreakerClient_OpensAfterFailures(t *testing.T) {
	mock := NewMockClient()
	mock.Err = &BackendError{Backend: "ollama", Message: "down", Retryable: true}
	b := NewBreakerClient("ollama", mock, BreakerConfig{Failures: 2, Timeout: time.Hour}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := b.Translate(context.Background(), "привіт", "Ukrainian", "English"); errors.Is(err, translator.ErrBackendUnavailable) {
			t.Fatalf("call %d: breaker opened too early", i)
		}
	}

	_, err := b.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if !errors.Is(err, translator.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if k := translator.Classify(err).Kind; k != translator.ResultUnavailable {
		t.Errorf("classified as %v", k)
	}
	if mock.CallCount() != 2 {
		t.Errorf("open breaker should not call through, calls = %d", mock.CallCount())
	}
	if b.State() != "open" {
		t.Errorf("state = %s", b.State())
	}
}

func TestBreakerClient_IgnoresRateLimits(t *testing.T) {
	mock := NewMockClient()
	mock.Err = &RateLimitError{Backend: "google", StatusCode: 429}
	b := NewBreakerClient("google", mock, BreakerConfig{Failures: 1}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := b.Translate(context.Background(), "привіт", "Ukrainian", "English")
		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			t.Fatalf("call %d: expected the rate limit to pass through, got %v", i, err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreakerClient_IgnoresThrottleRefusals(t *testing.T) {
	throttled := translator.NewThrottledClient("ollama", NewMockClient(), translator.ThrottleConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
	})
	b := NewBreakerClient("ollama", throttled, BreakerConfig{Failures: 1, Timeout: time.Hour}, zerolog.Nop())

	if _, err := b.Translate(context.Background(), "привіт", "Ukrainian", "English"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := b.Translate(ctx, "привіт", "Ukrainian", "English")
		cancel()
		if !errors.Is(err, translator.ErrThrottleDeadline) {
			t.Fatalf("call %d: expected ErrThrottleDeadline, got %v", i, err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreakerClient_PassesSuccess(t *testing.T) {
	b := NewBreakerClient("mock", NewMockClient(), BreakerConfig{}, zerolog.Nop())
	out, err := b.Translate(context.Background(), "привіт", "Ukrainian", "English")
	if err != nil || out != "hello" {
		t.Errorf("got %q, %v", out, err)
	}
}
