package translator

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrThrottleDeadline is returned when the next backend slot opens after the
// request deadline. Waiting would only spend the budget the remaining
// backends in the chain need.
var ErrThrottleDeadline = errors.New("backend quota slot opens after request deadline")

// Throttle keeps calls to one backend under its requests-per-minute quota so
// the provider never has to answer with a 429. Callers wait for the next slot;
// ActorLimiter is the one that refuses.
type Throttle struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	perSec float64
	last   time.Time
	now    func() time.Time
}

// ThrottleConfig is the per-backend quota from backends.<name>.requests_per_minute.
type ThrottleConfig struct {
	RequestsPerMinute int // <= 0 means 60
	BurstSize         int // calls allowed back to back; <= 0 means RequestsPerMinute
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithThrottleClock replaces the time source used for refills.
func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) {
		t.now = now
	}
}

func NewThrottle(cfg ThrottleConfig, opts ...ThrottleOption) *Throttle {
	rpm := float64(cfg.RequestsPerMinute)
	if rpm <= 0 {
		rpm = 60
	}
	burst := float64(cfg.BurstSize)
	if burst <= 0 {
		burst = rpm
	}

	t := &Throttle{
		tokens: burst,
		burst:  burst,
		perSec: rpm / 60,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.last = t.now()
	return t
}

// reserve takes a slot if one is free. Otherwise it returns how long until
// the next one opens.
func (t *Throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refill()
	if t.tokens >= 1 {
		t.tokens--
		return 0
	}
	return time.Duration((1 - t.tokens) / t.perSec * float64(time.Second))
}

// refill credits the time since the last call. Must be called with mu held.
func (t *Throttle) refill() {
	now := t.now()
	t.tokens += now.Sub(t.last).Seconds() * t.perSec
	if t.tokens > t.burst {
		t.tokens = t.burst
	}
	t.last = now
}

// Allow takes a slot without waiting.
func (t *Throttle) Allow() bool {
	return t.reserve() == 0
}

// Wait blocks until a slot is taken. When ctx carries a deadline that the
// next slot cannot meet it returns ErrThrottleDeadline straight away.
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		d := t.reserve()
		if d == 0 {
			return nil
		}
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < d {
			return ErrThrottleDeadline
		}
		if err := sleepContext(ctx, d); err != nil {
			return err
		}
	}
}

// Tokens reports the slots currently free, fractional while refilling.
func (t *Throttle) Tokens() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refill()
	return t.tokens
}

// ThrottledClient paces a backend client with a Throttle. A call that cannot
// get a slot fails with a non-retryable BackendError, which the chain treats
// as a failed attempt and moves on to the next backend.
type ThrottledClient struct {
	name     string
	client   Client
	throttle *Throttle
}

func NewThrottledClient(name string, client Client, cfg ThrottleConfig, opts ...ThrottleOption) *ThrottledClient {
	return &ThrottledClient{
		name:     name,
		client:   client,
		throttle: NewThrottle(cfg, opts...),
	}
}

func (p *ThrottledClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	if err := p.throttle.Wait(ctx); err != nil {
		msg := "waiting for quota slot"
		if errors.Is(err, ErrThrottleDeadline) {
			msg = "quota exhausted until after the deadline"
		}
		return "", &BackendError{Backend: p.name, Message: msg, Cause: err}
	}
	return p.client.Translate(ctx, text, from, to)
}

// Throttle returns the pacing state, for status reporting.
func (p *ThrottledClient) Throttle() *Throttle {
	return p.throttle
}
