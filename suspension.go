package translator

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// KeyID returns the identifier of the i-th API key of a multi-key backend.
func KeyID(i int) string {
	return "key-" + strconv.Itoa(i)
}

// SuspensionKey is the registry key for a backend, or for one of its API keys
// when keyID is non-empty.
func SuspensionKey(backend, keyID string) string {
	if keyID == "" {
		return backend
	}
	return backend + ":" + keyID
}

// Suspension is a point-in-time view of one registry entry.
type Suspension struct {
	Backend   string    `json:"backend"`
	KeyID     string    `json:"key_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SuspensionRegistry records backends (or backend API keys) that are
// temporarily excluded after a rate-limit response. Expired entries are
// invisible to every query and are removed lazily.
type SuspensionRegistry struct {
	entries   sync.Map // suspension key -> time.Time
	keyCounts sync.Map // backend -> int
	now       func() time.Time
	logger    zerolog.Logger
}

// SuspensionOption configures a SuspensionRegistry.
type SuspensionOption func(*SuspensionRegistry)

// WithSuspensionClock replaces the time source.
func WithSuspensionClock(now func() time.Time) SuspensionOption {
	return func(r *SuspensionRegistry) {
		r.now = now
	}
}

// WithSuspensionLogger sets the logger for suspend and re-enable events.
func WithSuspensionLogger(logger zerolog.Logger) SuspensionOption {
	return func(r *SuspensionRegistry) {
		r.logger = logger
	}
}

// NewSuspensionRegistry creates an empty registry.
func NewSuspensionRegistry(opts ...SuspensionOption) *SuspensionRegistry {
	r := &SuspensionRegistry{
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetKeyCount declares how many API keys a backend rotates through. With n > 1
// the backend counts as suspended once every key-i is suspended.
func (r *SuspensionRegistry) SetKeyCount(backend string, n int) {
	if n <= 1 {
		r.keyCounts.Delete(backend)
		return
	}
	r.keyCounts.Store(backend, n)
}

// KeyCount returns the number of keys declared with SetKeyCount, or 1.
func (r *SuspensionRegistry) KeyCount(backend string) int {
	if n, ok := r.keyCounts.Load(backend); ok {
		return n.(int)
	}
	return 1
}

// Suspend excludes backend (or backend:keyID) for d. Suspending an already
// suspended entry moves its expiry to now+d.
func (r *SuspensionRegistry) Suspend(backend, keyID string, d time.Duration) time.Time {
	expiresAt := r.now().Add(d)
	r.entries.Store(SuspensionKey(backend, keyID), expiresAt)

	event := r.logger.Warn().
		Str("backend", backend).
		Dur("duration", d).
		Time("expires_at", expiresAt)
	if keyID != "" {
		event = event.Str("key", keyID)
	}
	event.Msg("backend suspended after rate limit")

	return expiresAt
}

// active reports whether key is currently suspended, dropping it if expired.
func (r *SuspensionRegistry) active(key string, now time.Time) (time.Time, bool) {
	v, ok := r.entries.Load(key)
	if !ok {
		return time.Time{}, false
	}
	expiresAt := v.(time.Time)
	if now.Before(expiresAt) {
		return expiresAt, true
	}
	if r.entries.CompareAndDelete(key, v) {
		r.logger.Info().Str("suspension", key).Msg("suspension expired, re-enabling")
	}
	return time.Time{}, false
}

// IsSuspended reports whether the chain should skip backend: either the
// backend itself is suspended, or it has several keys and all of them are.
func (r *SuspensionRegistry) IsSuspended(backend string) bool {
	now := r.now()
	if _, ok := r.active(backend, now); ok {
		return true
	}

	n := r.KeyCount(backend)
	if n <= 1 {
		return false
	}
	for i := 0; i < n; i++ {
		if _, ok := r.active(SuspensionKey(backend, KeyID(i)), now); !ok {
			return false
		}
	}
	return true
}

// IsKeySuspended reports whether one API key of backend is suspended.
func (r *SuspensionRegistry) IsKeySuspended(backend, keyID string) bool {
	_, ok := r.active(SuspensionKey(backend, keyID), r.now())
	return ok
}

// FirstAvailableKey returns the lowest key index in [0, totalKeys) that is not
// suspended, or false when every key is.
func (r *SuspensionRegistry) FirstAvailableKey(backend string, totalKeys int) (int, bool) {
	now := r.now()
	for i := 0; i < totalKeys; i++ {
		if _, ok := r.active(SuspensionKey(backend, KeyID(i)), now); !ok {
			return i, true
		}
	}
	return -1, false
}

// Expiry returns when the suspension of backend (or backend:keyID) ends.
func (r *SuspensionRegistry) Expiry(backend, keyID string) (time.Time, bool) {
	return r.active(SuspensionKey(backend, keyID), r.now())
}

// Remove lifts a suspension early. The backend name is case-insensitive.
func (r *SuspensionRegistry) Remove(backend, keyID string) bool {
	key := SuspensionKey(normalizeName(backend), strings.TrimSpace(keyID))
	if _, loaded := r.entries.LoadAndDelete(key); loaded {
		r.logger.Info().Str("suspension", key).Msg("suspension removed manually")
		return true
	}
	return false
}

// RemoveBackend lifts every suspension of backend, including per-key ones.
// The name is matched the way the fallback chain stores it, case-insensitively.
func (r *SuspensionRegistry) RemoveBackend(backend string) int {
	backend = normalizeName(backend)
	if backend == "" {
		return 0
	}
	removed := 0
	r.entries.Range(func(k, _ any) bool {
		key := k.(string)
		if key == backend || strings.HasPrefix(key, backend+":") {
			if _, loaded := r.entries.LoadAndDelete(key); loaded {
				removed++
			}
		}
		return true
	})
	if removed > 0 {
		r.logger.Info().Str("backend", backend).Int("count", removed).Msg("suspensions removed manually")
	}
	return removed
}

// Clear removes every suspension.
func (r *SuspensionRegistry) Clear() {
	count := 0
	r.entries.Range(func(k, _ any) bool {
		r.entries.Delete(k)
		count++
		return true
	})
	if count > 0 {
		r.logger.Info().Int("count", count).Msg("cleared rate limit suspensions")
	}
}

// ActiveCount returns the number of unexpired suspensions.
func (r *SuspensionRegistry) ActiveCount() int {
	return len(r.Snapshot())
}

// Snapshot lists unexpired suspensions ordered by backend then key.
func (r *SuspensionRegistry) Snapshot() []Suspension {
	now := r.now()
	var out []Suspension
	r.entries.Range(func(k, _ any) bool {
		key := k.(string)
		expiresAt, ok := r.active(key, now)
		if !ok {
			return true
		}
		backend, keyID, _ := strings.Cut(key, ":")
		out = append(out, Suspension{Backend: backend, KeyID: keyID, ExpiresAt: expiresAt})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Backend != out[j].Backend {
			return out[i].Backend < out[j].Backend
		}
		return out[i].KeyID < out[j].KeyID
	})
	return out
}
