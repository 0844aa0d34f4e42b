package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMinMessageLength is the shortest message, in runes, that is translated.
const DefaultMinMessageLength = 3

// TranslationCache is the interface for translation caching.
type TranslationCache interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Clear() error
}

// Manager is the entry point for translating chat messages. It gates requests
// (length, language, actor rate), serves repeats from the cache and hands
// everything else to the fallback chain.
type Manager struct {
	fallback   *FallbackHandler
	detector   Detector
	cache      TranslationCache
	limiter    *ActorLimiter
	minLength  int
	autoSource bool
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

// WithCache sets the translation cache.
func WithCache(cache TranslationCache) ManagerOption {
	return func(m *Manager) {
		m.cache = cache
	}
}

// WithDetector replaces the default ScriptDetector.
func WithDetector(d Detector) ManagerOption {
	return func(m *Manager) {
		m.detector = d
	}
}

// WithActorLimiter sets the per-actor admission limiter.
func WithActorLimiter(l *ActorLimiter) ManagerOption {
	return func(m *Manager) {
		m.limiter = l
	}
}

// WithMinMessageLength sets the shortest message that is translated.
func WithMinMessageLength(n int) ManagerOption {
	return func(m *Manager) {
		m.minLength = n
	}
}

// WithAutoSource makes backends detect the source language themselves.
// Detection still decides whether a message needs translation.
func WithAutoSource(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.autoSource = enabled
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTracer sets the tracer for request spans.
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// NewManager creates a Manager translating through fallback.
func NewManager(fallback *FallbackHandler, opts ...ManagerOption) *Manager {
	m := &Manager{
		fallback:  fallback,
		detector:  NewScriptDetector(),
		minLength: DefaultMinMessageLength,
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Fallback returns the underlying chain.
func (m *Manager) Fallback() *FallbackHandler {
	return m.fallback
}

// Detector returns the language detector in use.
func (m *Manager) Detector() Detector {
	return m.detector
}

// route is the language pair of a request that passed the language gate.
type route struct {
	source Language // what the message is written in
	target Language
	wire   Language // what backends are told the source is
}

// resolve applies the length and language gates. A nil route comes with the
// NoTranslationNeeded outcome to return. detected, when non-nil, is used
// instead of running the detector again.
func (m *Manager) resolve(text, sourceLang, locale string, detected *Language) (*route, Outcome) {
	if utf8.RuneCountInString(text) < m.minLength {
		return nil, &NoTranslationNeeded{Reason: ReasonTooShort}
	}

	target := LanguageOf(TargetFor(locale))

	var source Language
	if sourceLang == "" || strings.EqualFold(sourceLang, AutoDetect) {
		if detected != nil {
			source = *detected
		} else {
			source = m.detector.Detect(text)
		}
		if source.IsUnknown() {
			return nil, &NoTranslationNeeded{Reason: ReasonNotNeeded}
		}
	} else {
		source = LanguageOf(sourceLang)
		if source.IsUnknown() {
			source = Language{Code: strings.ToLower(sourceLang), Name: sourceLang}
		}
	}

	if source.Code == target.Code {
		return nil, &NoTranslationNeeded{Reason: ReasonNotNeeded}
	}

	r := &route{source: source, target: target, wire: source}
	if m.autoSource && (sourceLang == "" || strings.EqualFold(sourceLang, AutoDetect)) {
		r.wire = AutoDetected
	}
	return r, nil
}

// Translate runs one request through the gates, the cache and the fallback
// chain. It always returns a non-nil Outcome.
func (m *Manager) Translate(ctx context.Context, req Request) (out Outcome) {
	ctx, span := m.tracer.Start(ctx, "translator.Translate",
		trace.WithAttributes(
			attribute.String("actor", string(req.ActorID)),
			attribute.String("locale", req.TargetLang),
		))
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("translation panicked")
			out = &Failed{Reason: ReasonServiceUnavailable}
		}
		span.SetAttributes(attribute.String("outcome", fmt.Sprintf("%T", out)))
		span.End()
	}()

	r, skip := m.resolve(req.Text, req.SourceLang, req.TargetLang, nil)
	if skip != nil {
		return skip
	}

	release, ok := m.admit(req.ActorID)
	if !ok {
		m.logger.Debug().Str("actor", string(req.ActorID)).Msg("actor rate limited")
		return &RateLimited{}
	}

	key := CacheKey(r.wire.Code, r.target.Code, req.Text)
	if m.cache != nil {
		if cached, ok := m.cache.Get(key); ok {
			release()
			return &Success{
				Text:     cached,
				Original: req.Text,
				Source:   r.source,
				Target:   r.target,
				Cached:   true,
			}
		}
	}

	return m.translate(ctx, req.Text, r, key)
}

// admit reserves a slot in the actor's window. Cache hits call release so
// only requests that reach the chain count against the actor.
func (m *Manager) admit(id ActorID) (release func(), ok bool) {
	if m.limiter == nil || id == "" {
		return func() {}, true
	}
	stamp, ok := m.limiter.TryAcquire(id)
	if !ok {
		return nil, false
	}
	return func() { m.limiter.Release(id, stamp) }, true
}

// translate runs the chain for a cache miss and caches the result.
func (m *Manager) translate(ctx context.Context, text string, r *route, key string) Outcome {
	result, err := m.fallback.TranslateWithFallback(ctx, text, r.wire.Name, r.target.Name)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &Failed{Reason: "Translation cancelled: " + err.Error()}
		}
		return &Failed{Reason: ReasonServiceUnavailable}
	}

	if m.cache != nil {
		if err := m.cache.Set(key, result.Text); err != nil {
			m.logger.Warn().Err(err).Msg("failed to cache translation")
		}
	}

	m.logger.Debug().
		Str("backend", result.Backend).
		Str("from", r.source.Code).
		Str("to", r.target.Code).
		Msg("translated")

	return &Success{
		Text:     result.Text,
		Original: text,
		Source:   r.source,
		Target:   r.target,
		Backend:  result.Backend,
	}
}

// TranslateAsync runs Translate on its own goroutine. The channel receives
// exactly one Outcome.
func (m *Manager) TranslateAsync(ctx context.Context, req Request) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		ch <- m.Translate(ctx, req)
	}()
	return ch
}

// ClearCache empties the result cache and forgets actor usage.
func (m *Manager) ClearCache() error {
	if m.limiter != nil {
		m.limiter.Clear()
	}
	if m.cache == nil {
		return nil
	}
	if err := m.cache.Clear(); err != nil {
		return &CacheError{Message: "clear failed", Cause: err}
	}
	return nil
}
