package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// cacheEntry holds a cached value with its insertion time.
type cacheEntry struct {
	value     string
	timestamp time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// InMemoryCache is a thread-safe in-memory cache with TTL support.
// Entries are spread over independently locked shards so readers of
// different keys do not contend.
type InMemoryCache struct {
	shards [shardCount]*shard
	ttl    time.Duration
	now    func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// MemoryOption configures an InMemoryCache.
type MemoryOption func(*InMemoryCache)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemoryCache) {
		c.now = now
	}
}

// NewInMemoryCache creates a new in-memory cache with the specified TTL.
// If ttlSeconds is 0 or negative, entries never expire.
func NewInMemoryCache(ttlSeconds int, opts ...MemoryOption) *InMemoryCache {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = 0 // No expiration
	}
	c := &InMemoryCache{
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]cacheEntry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryCache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

func (c *InMemoryCache) expired(e cacheEntry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.timestamp) > c.ttl
}

// Get retrieves a value from the cache.
// Returns the value and true if found and not expired, empty string and false otherwise.
// Expiry is checked here as well as by the sweeper, so a stale entry is never
// returned even if the sweeper has not run yet.
func (c *InMemoryCache) Get(key string) (string, bool) {
	s := c.shardFor(key)
	now := c.now()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}

	if c.expired(entry, now) {
		s.mu.Lock()
		// A concurrent Set may have replaced the entry in between.
		if cur, ok := s.entries[key]; ok && cur.timestamp.Equal(entry.timestamp) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false
	}

	return entry.value, true
}

// Set stores a value in the cache.
func (c *InMemoryCache) Set(key string, value string) error {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = cacheEntry{
		value:     value,
		timestamp: c.now(),
	}
	return nil
}

// Len returns the number of entries in the cache (including expired ones).
func (c *InMemoryCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Clear removes all entries from the cache.
func (c *InMemoryCache) Clear() error {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[string]cacheEntry)
		s.mu.Unlock()
	}
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (c *InMemoryCache) Sweep() int {
	if c.ttl <= 0 {
		return 0
	}
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key, entry := range s.entries {
			if c.expired(entry, now) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Start runs Sweep once per TTL period until ctx is done or Close is called.
// It is a no-op for caches without expiry.
func (c *InMemoryCache) Start(ctx context.Context) {
	if c.ttl <= 0 {
		return
	}
	c.startOnce.Do(func() {
		c.done = make(chan struct{})
		go c.sweepLoop(ctx)
	})
}

func (c *InMemoryCache) sweepLoop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Close stops the sweeper started by Start and waits for it to exit.
func (c *InMemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.done != nil {
		<-c.done
	}
	return nil
}

// SetAt stores a value as if it had been set at insertedAt. It returns
// ErrEntryExpired instead of storing an entry that is already past the TTL,
// or one with no insertion time when the cache expires entries.
func (c *InMemoryCache) SetAt(key, value string, insertedAt time.Time) error {
	now := c.now()
	if insertedAt.IsZero() {
		if c.ttl > 0 {
			return ErrEntryExpired
		}
		insertedAt = now
	}
	e := cacheEntry{value: value, timestamp: insertedAt}
	if c.expired(e, now) {
		return ErrEntryExpired
	}

	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Entries returns all non-expired entries with their insertion times.
// This is used for cache export.
func (c *InMemoryCache) Entries() map[string]Entry {
	result := make(map[string]Entry)
	now := c.now()

	for _, s := range c.shards {
		s.mu.RLock()
		for key, entry := range s.entries {
			if c.expired(entry, now) {
				continue
			}
			result[key] = Entry{Value: entry.value, InsertedAt: entry.timestamp}
		}
		s.mu.RUnlock()
	}

	return result
}

var _ RestorableCache = (*InMemoryCache)(nil)
