package translator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mc-mysterria/mysterria-translator-sub000"

// DefaultSuspensionDuration is how long a rate-limited backend or key is skipped.
const DefaultSuspensionDuration = 20 * time.Minute

// DefaultNoticeCooldown is the minimum gap between two fallback or recovery notices.
const DefaultNoticeCooldown = 15 * time.Minute

// Translation is a successful chain result with its provenance.
type Translation struct {
	Text    string
	Backend string
}

// FallbackHandler walks the ordered backend list until one translates.
//
// Per backend: suspended backends are skipped; a rate limit suspends the
// backend (or key) and moves on; transient errors are retried with backoff
// up to MaxRetries; anything else moves on. The handler owns the
// last-successful backend and the notice cooldown, both updated atomically.
type FallbackHandler struct {
	executor    *Executor
	suspensions *SuspensionRegistry
	backends    atomic.Pointer[[]string]

	retry      RetryConfig
	suspendFor time.Duration
	cooldown   time.Duration
	notifier   Notifier
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	wait       func(context.Context, time.Duration) error

	lastSuccessful atomic.Pointer[string]
	lastNotice     atomic.Int64 // unix nanos, 0 = never
}

// FallbackOption configures a FallbackHandler.
type FallbackOption func(*FallbackHandler)

// WithRetryConfig sets per-backend retry behaviour.
func WithRetryConfig(cfg RetryConfig) FallbackOption {
	return func(h *FallbackHandler) {
		h.retry = cfg
	}
}

// WithSuspensionDuration sets how long rate-limited backends are skipped.
func WithSuspensionDuration(d time.Duration) FallbackOption {
	return func(h *FallbackHandler) {
		h.suspendFor = d
	}
}

// WithNoticeCooldown sets the shared cooldown for fallback and recovery notices.
func WithNoticeCooldown(d time.Duration) FallbackOption {
	return func(h *FallbackHandler) {
		h.cooldown = d
	}
}

// WithNotifier sets the notice sink.
func WithNotifier(n Notifier) FallbackOption {
	return func(h *FallbackHandler) {
		h.notifier = n
	}
}

// WithFallbackLogger sets the handler's logger.
func WithFallbackLogger(logger zerolog.Logger) FallbackOption {
	return func(h *FallbackHandler) {
		h.logger = logger
	}
}

// WithFallbackClock replaces the time source used for notice cooldowns.
func WithFallbackClock(now func() time.Time) FallbackOption {
	return func(h *FallbackHandler) {
		h.now = now
	}
}

// WithWaitFunc replaces the backoff wait. The function must return early with
// ctx.Err() when ctx is done.
func WithWaitFunc(wait func(context.Context, time.Duration) error) FallbackOption {
	return func(h *FallbackHandler) {
		h.wait = wait
	}
}

// WithFallbackTracer sets the tracer used for per-attempt spans.
func WithFallbackTracer(tracer trace.Tracer) FallbackOption {
	return func(h *FallbackHandler) {
		h.tracer = tracer
	}
}

// NewFallbackHandler creates a handler over backends, tried in order.
func NewFallbackHandler(executor *Executor, suspensions *SuspensionRegistry, backends []string, opts ...FallbackOption) *FallbackHandler {
	h := &FallbackHandler{
		executor:    executor,
		suspensions: suspensions,
		retry:       DefaultRetryConfig(),
		suspendFor:  DefaultSuspensionDuration,
		cooldown:    DefaultNoticeCooldown,
		notifier:    NotifierFunc(func(Notice) {}),
		logger:      zerolog.Nop(),
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		wait:        sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.retry.Backoff == nil {
		h.retry.Backoff = DefaultRetryConfig().Backoff
	}
	h.UpdateBackends(backends)
	return h
}

// UpdateBackends replaces the backend order. Calls already in flight keep
// the list they started with.
func (h *FallbackHandler) UpdateBackends(backends []string) {
	list := make([]string, 0, len(backends))
	for _, b := range backends {
		if b = normalizeName(b); b != "" {
			list = append(list, b)
		}
	}
	h.backends.Store(&list)
	h.logger.Debug().Strs("backends", list).Msg("backend order updated")
}

// Backends returns the current backend order.
func (h *FallbackHandler) Backends() []string {
	list := *h.backends.Load()
	return append([]string(nil), list...)
}

// LastSuccessful returns the backend that produced the most recent translation.
func (h *FallbackHandler) LastSuccessful() string {
	if p := h.lastSuccessful.Load(); p != nil {
		return *p
	}
	return ""
}

// Suspensions exposes the registry the handler consults.
func (h *FallbackHandler) Suspensions() *SuspensionRegistry {
	return h.suspensions
}

// TranslateWithFallback runs the chain. When every backend failed or was
// skipped it returns a *TranslationError wrapping ErrAllBackendsExhausted and
// the last backend error; if ctx ends first it returns ctx.Err().
func (h *FallbackHandler) TranslateWithFallback(ctx context.Context, text, from, to string) (Translation, error) {
	backends := *h.backends.Load()

	var lastErr error
	i, attempt := 0, 0
	for i < len(backends) {
		if err := ctx.Err(); err != nil {
			return Translation{}, err
		}
		name := backends[i]

		if h.suspensions.IsSuspended(name) {
			h.logger.Debug().Str("backend", name).Msg("backend suspended, skipping")
			h.noticeFallback(backends, i)
			i, attempt = i+1, 0
			continue
		}

		res, err := h.call(ctx, name, attempt, text, from, to)
		if err != nil {
			return Translation{}, err
		}

		switch res.Kind {
		case ResultOK:
			h.recordSuccess(name, i)
			return Translation{Text: res.Text, Backend: name}, nil

		case ResultRateLimited:
			lastErr = res.Err
			h.suspend(name, res)
			h.noticeFallback(backends, i)
			i, attempt = i+1, 0

		case ResultTransient:
			lastErr = res.Err
			if attempt < h.retry.MaxRetries {
				delay := h.retry.Backoff(attempt)
				h.logger.Debug().Err(res.Err).Str("backend", name).Int("attempt", attempt+1).Dur("backoff", delay).Msg("retrying backend")
				if err := h.wait(ctx, delay); err != nil {
					return Translation{}, err
				}
				attempt++
				continue
			}
			h.logger.Debug().Err(res.Err).Str("backend", name).Msg("backend failed, trying next")
			h.noticeFallback(backends, i)
			i, attempt = i+1, 0

		case ResultNotConfigured:
			i, attempt = i+1, 0

		default:
			lastErr = res.Err
			h.logger.Debug().Err(res.Err).Str("backend", name).Stringer("result", res.Kind).Msg("backend unusable, trying next")
			h.noticeFallback(backends, i)
			i, attempt = i+1, 0
		}
	}

	h.logger.Warn().Err(lastErr).Strs("backends", backends).Msg("all translation backends failed")
	cause := ErrAllBackendsExhausted
	if lastErr != nil {
		cause = fmt.Errorf("%w: last error: %v", ErrAllBackendsExhausted, lastErr)
	}
	return Translation{}, &TranslationError{Message: fmt.Sprintf("translating with %d backend(s)", len(backends)), Cause: cause}
}

// call performs one backend call. If ctx ends first the call is abandoned,
// but it keeps running detached and a rate limit it reports still suspends
// the backend.
func (h *FallbackHandler) call(ctx context.Context, name string, attempt int, text, from, to string) (ExecResult, error) {
	spanCtx, span := h.tracer.Start(ctx, "translator.backend",
		trace.WithAttributes(
			attribute.String("backend", name),
			attribute.Int("attempt", attempt),
		))

	ch := h.executor.ExecuteAsync(context.WithoutCancel(spanCtx), name, text, from, to)

	select {
	case res := <-ch:
		span.SetAttributes(attribute.String("result", res.Kind.String()))
		if res.Kind != ResultOK && res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Kind.String())
		}
		span.End()
		return res, nil

	case <-ctx.Done():
		span.SetStatus(codes.Error, "abandoned")
		span.End()
		go func() {
			if res := <-ch; res.Kind == ResultRateLimited {
				h.suspend(name, res)
			}
		}()
		return ExecResult{}, ctx.Err()
	}
}

func (h *FallbackHandler) suspend(name string, res ExecResult) {
	h.suspensions.Suspend(name, res.KeyID, h.suspendFor)
}

// claimNotice reserves the shared notice slot if the cooldown has elapsed.
func (h *FallbackHandler) claimNotice(now time.Time) bool {
	for {
		last := h.lastNotice.Load()
		if last != 0 && now.Sub(time.Unix(0, last)) < h.cooldown {
			return false
		}
		if h.lastNotice.CompareAndSwap(last, now.UnixNano()) {
			return true
		}
	}
}

// noticeFallback announces leaving the primary backend for the next one.
func (h *FallbackHandler) noticeFallback(backends []string, i int) {
	if i != 0 || i+1 >= len(backends) {
		return
	}
	now := h.now()
	if !h.claimNotice(now) {
		return
	}
	failed, next := backends[0], backends[1]
	h.notifier.Notify(Notice{
		Kind:     NoticeFallback,
		Severity: SeverityWarning,
		Message: fmt.Sprintf("Primary translation provider %s is unavailable. Falling back to %s. Translation quality may be degraded.",
			failed, next),
		From: failed,
		To:   next,
		At:   now,
	})
}

// recordSuccess updates the last-successful backend and announces recovery
// when the primary takes over again from another backend.
func (h *FallbackHandler) recordSuccess(name string, i int) {
	prev := h.lastSuccessful.Swap(&name)
	if i != 0 || prev == nil || strings.EqualFold(*prev, name) {
		return
	}
	now := h.now()
	if !h.claimNotice(now) {
		return
	}
	h.notifier.Notify(Notice{
		Kind:     NoticeRecovery,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Translation engine recovered: now using %s", name),
		From:     *prev,
		To:       name,
		At:       now,
	})
}
