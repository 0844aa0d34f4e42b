package translator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Client is one external translation backend. from and to are language
// display names such as "Ukrainian"; implementations map them to whatever
// their API expects. A rate-limit response must be reported as *RateLimitError.
type Client interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, text, from, to string) (string, error)

// Translate implements Client.
func (f ClientFunc) Translate(ctx context.Context, text, from, to string) (string, error) {
	return f(ctx, text, from, to)
}

// ResultKind classifies one backend call.
type ResultKind int

const (
	ResultOK            ResultKind = iota
	ResultRateLimited              // suspend and move on
	ResultTransient                // retry with backoff, then move on
	ResultFailed                   // move on without retrying
	ResultNotConfigured            // no such client, move on silently
	ResultUnavailable              // client declined (breaker open), move on
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultRateLimited:
		return "rate_limited"
	case ResultTransient:
		return "transient"
	case ResultFailed:
		return "failed"
	case ResultNotConfigured:
		return "not_configured"
	case ResultUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// ExecResult is the outcome of a single backend call.
type ExecResult struct {
	Kind       ResultKind
	Text       string
	KeyID      string // set for rate limits on multi-key backends
	StatusCode int
	Err        error
}

// Executor routes a call to the client registered under a backend name. It
// performs no retries and no fallback.
type Executor struct {
	mu      sync.RWMutex
	clients map[string]Client
	logger  zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor with no clients.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		clients: make(map[string]Client),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register binds a client to a backend name, replacing any previous one.
func (e *Executor) Register(name string, c Client) {
	e.mu.Lock()
	e.clients[normalizeName(name)] = c
	e.mu.Unlock()
}

// Unregister removes the client for name.
func (e *Executor) Unregister(name string) {
	e.mu.Lock()
	delete(e.clients, normalizeName(name))
	e.mu.Unlock()
}

// Client returns the client registered for name.
func (e *Executor) Client(name string) (Client, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.clients[normalizeName(name)]
	return c, ok
}

// Names lists registered backend names in sorted order.
func (e *Executor) Names() []string {
	e.mu.RLock()
	names := make([]string, 0, len(e.clients))
	for name := range e.clients {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Execute calls the named backend once and classifies the result. It never
// panics: a panicking client is reported as a transient failure.
func (e *Executor) Execute(ctx context.Context, name, text, from, to string) (res ExecResult) {
	c, ok := e.Client(name)
	if !ok || c == nil {
		e.logger.Debug().Str("backend", name).Msg("backend not configured")
		return ExecResult{Kind: ResultNotConfigured, Err: fmt.Errorf("%w: %s", ErrNotConfigured, name)}
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("backend", name).Interface("panic", r).Msg("backend client panicked")
			res = ExecResult{Kind: ResultTransient, Err: fmt.Errorf("backend %s panicked: %v", name, r)}
		}
	}()

	out, err := c.Translate(ctx, text, from, to)
	res = Classify(err)
	if res.Kind != ResultOK {
		e.logger.Debug().Err(err).Str("backend", name).Stringer("result", res.Kind).Msg("backend call failed")
		return res
	}

	if strings.TrimSpace(out) == "" {
		return ExecResult{Kind: ResultFailed, Err: &BackendError{Backend: name, Message: "empty translation"}}
	}
	res.Text = out
	return res
}

// ExecuteAsync runs Execute on its own goroutine. The channel is buffered so
// the call completes even if nobody receives.
func (e *Executor) ExecuteAsync(ctx context.Context, name, text, from, to string) <-chan ExecResult {
	ch := make(chan ExecResult, 1)
	go func() {
		ch <- e.Execute(ctx, name, text, from, to)
	}()
	return ch
}
