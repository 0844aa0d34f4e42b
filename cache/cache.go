// Package cache provides translation result caching implementations.
//
// Keys are opaque strings built by the caller (see translator.CacheKey); the
// cache only stores values and enforces their lifetime.
package cache

import (
	"errors"
	"time"
)

// TranslationCache is the interface for translation caching.
type TranslationCache interface {
	// Get retrieves a cached translation. Returns empty string and false if not found or expired.
	Get(key string) (string, bool)

	// Set stores a translation in the cache. An existing entry is replaced.
	Set(key string, value string) error

	// Clear removes every entry.
	Clear() error
}

// ErrEntryExpired is returned by SetAt when the entry is already past the
// cache TTL, or when its age is unknown and the cache expires entries.
var ErrEntryExpired = errors.New("cache entry expired")

// Entry is a live cached value with the time it was stored.
type Entry struct {
	Value      string
	InsertedAt time.Time
}

// RestorableCache can store an entry under its original insertion time, so
// the entry expires when it would have in the cache it came from.
type RestorableCache interface {
	TranslationCache
	SetAt(key, value string, insertedAt time.Time) error
}
