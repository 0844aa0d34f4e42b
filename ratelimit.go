package translator

import (
	"context"
	"sync"
	"time"
)

// ActorLimitConfig configures the per-actor admission window.
type ActorLimitConfig struct {
	Messages int           // translations allowed per window
	Window   time.Duration // length of the sliding window
}

// DefaultActorLimitConfig allows 2 translations per 10 seconds.
func DefaultActorLimitConfig() ActorLimitConfig {
	return ActorLimitConfig{Messages: 2, Window: 10 * time.Second}
}

type actorWindow struct {
	mu     sync.Mutex
	stamps []time.Time // ascending
}

// prune drops stamps older than cutoff. Must be called with mu held.
func (w *actorWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// ActorLimiter is a sliding-window admission check per actor. It guards
// backends from a single chatty actor, independently of backend suspensions.
type ActorLimiter struct {
	mu      sync.RWMutex
	windows map[ActorID]*actorWindow
	limit   int
	window  time.Duration
	now     func() time.Time

	startOnce sync.Once
}

// ActorLimiterOption configures an ActorLimiter.
type ActorLimiterOption func(*ActorLimiter)

// WithActorLimiterClock replaces the time source.
func WithActorLimiterClock(now func() time.Time) ActorLimiterOption {
	return func(l *ActorLimiter) {
		l.now = now
	}
}

// NewActorLimiter creates a limiter. Non-positive fields fall back to DefaultActorLimitConfig.
func NewActorLimiter(cfg ActorLimitConfig, opts ...ActorLimiterOption) *ActorLimiter {
	def := DefaultActorLimitConfig()
	if cfg.Messages <= 0 {
		cfg.Messages = def.Messages
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	l := &ActorLimiter{
		windows: make(map[ActorID]*actorWindow),
		limit:   cfg.Messages,
		window:  cfg.Window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ActorLimiter) windowFor(id ActorID) *actorWindow {
	l.mu.RLock()
	w, ok := l.windows[id]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[id]; !ok {
		w = &actorWindow{}
		l.windows[id] = w
	}
	return w
}

// CanProceed reports whether the actor has fewer than the allowed number of
// recorded translations in the trailing window. It does not record usage.
func (l *ActorLimiter) CanProceed(id ActorID) bool {
	w := l.windowFor(id)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now.Add(-l.window))
	return len(w.stamps) < l.limit
}

// RecordUsage counts one translation against the actor.
func (l *ActorLimiter) RecordUsage(id ActorID) {
	w := l.windowFor(id)
	now := l.now()

	w.mu.Lock()
	w.stamps = append(w.stamps, now)
	w.mu.Unlock()
}

// TryAcquire checks the window and, when there is room, records one use in
// the same critical section, so concurrent callers for one actor cannot all
// be admitted. The returned stamp identifies the use for Release.
func (l *ActorLimiter) TryAcquire(id ActorID) (time.Time, bool) {
	w := l.windowFor(id)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now.Add(-l.window))
	if len(w.stamps) >= l.limit {
		return time.Time{}, false
	}
	w.stamps = append(w.stamps, now)
	return now, true
}

// Release gives back a use taken by TryAcquire, for requests that ended
// up not reaching a backend. A stamp already pruned is ignored.
func (l *ActorLimiter) Release(id ActorID, stamp time.Time) {
	w := l.windowFor(id)

	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(w.stamps) - 1; i >= 0; i-- {
		if w.stamps[i].Equal(stamp) {
			w.stamps = append(w.stamps[:i], w.stamps[i+1:]...)
			return
		}
	}
}

// Clear forgets every actor.
func (l *ActorLimiter) Clear() {
	l.mu.Lock()
	l.windows = make(map[ActorID]*actorWindow)
	l.mu.Unlock()
}

// Sweep prunes every window and forgets actors with nothing left in theirs.
// It returns the number of actors still tracked.
func (l *ActorLimiter) Sweep() int {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, w := range l.windows {
		w.mu.Lock()
		w.prune(cutoff)
		empty := len(w.stamps) == 0
		w.mu.Unlock()
		if empty {
			delete(l.windows, id)
		}
	}
	return len(l.windows)
}

// Start sweeps once per window until ctx is done. Calling it again is a no-op.
func (l *ActorLimiter) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(l.window)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					l.Sweep()
				}
			}
		}()
	})
}
