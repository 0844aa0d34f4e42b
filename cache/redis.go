package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultKeyPrefix namespaces translation entries in a shared Redis.
const DefaultKeyPrefix = "mysterria:tr:"

// RedisCache is a Redis-backed translation cache. Expiry is delegated to
// Redis, so no sweeper is needed.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    zerolog.Logger
	now       func() time.Time
}

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	URL       string // Redis connection URL (e.g., "redis://localhost:6379")
	TTL       int    // TTL in seconds (0 = no expiration)
	KeyPrefix string // Prefix for all keys (default: DefaultKeyPrefix)
}

// NewRedisCache creates a new Redis cache with the given configuration.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisCacheFromClient(client, cfg.TTL, cfg.KeyPrefix), nil
}

// NewRedisCacheFromClient creates a RedisCache from an existing Redis client.
func NewRedisCacheFromClient(client *redis.Client, ttlSeconds int, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = 0
	}

	return &RedisCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

// WithLogger sets the logger used to report Redis failures that are
// otherwise surfaced as cache misses.
func (c *RedisCache) WithLogger(logger zerolog.Logger) *RedisCache {
	c.logger = logger
	return c
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(key string) (string, bool) {
	ctx := context.Background()
	val, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed, treating as miss")
		return "", false
	}
	return val, true
}

// Set stores a value in Redis.
func (c *RedisCache) Set(key string, value string) error {
	ctx := context.Background()
	return c.client.Set(ctx, c.keyPrefix+key, value, c.ttl).Err()
}

// Clear deletes every key under the cache prefix.
func (c *RedisCache) Clear() error {
	ctx := context.Background()
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scanning %s*: %w", c.keyPrefix, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// SetAt stores a value with whatever is left of the TTL for an entry
// inserted at insertedAt.
func (c *RedisCache) SetAt(key, value string, insertedAt time.Time) error {
	ttl := c.ttl
	if ttl > 0 {
		if insertedAt.IsZero() {
			return ErrEntryExpired
		}
		ttl -= c.now().Sub(insertedAt)
		if ttl <= 0 {
			return ErrEntryExpired
		}
	}
	return c.client.Set(context.Background(), c.keyPrefix+key, value, ttl).Err()
}

// Entries lists every live entry under the cache prefix, with the prefix
// stripped. The insertion time is derived from the remaining PTTL; keys
// without an expiry report the time of the call. Keys that expire between
// SCAN and MGET are left out.
func (c *RedisCache) Entries() map[string]Entry {
	ctx := context.Background()
	out := make(map[string]Entry)

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", 100).Result()
		if err != nil {
			c.logger.Warn().Err(err).Msg("redis scan failed, snapshot is partial")
			return out
		}
		if len(keys) > 0 {
			vals, err := c.client.MGet(ctx, keys...).Result()
			if err != nil {
				c.logger.Warn().Err(err).Msg("redis mget failed, snapshot is partial")
				return out
			}
			for i, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				inserted, ok := c.insertedAt(ctx, keys[i])
				if !ok {
					continue
				}
				out[strings.TrimPrefix(keys[i], c.keyPrefix)] = Entry{Value: s, InsertedAt: inserted}
			}
		}
		if next == 0 {
			return out
		}
		cursor = next
	}
}

// insertedAt reports false when the key is gone or its TTL cannot be read.
func (c *RedisCache) insertedAt(ctx context.Context, key string) (time.Time, bool) {
	now := c.now()
	if c.ttl <= 0 {
		return now, true
	}
	left, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis pttl failed, entry left out")
		return time.Time{}, false
	}
	switch {
	case left == -2:
		return time.Time{}, false
	case left < 0:
		return now, true
	}
	return now.Add(left - c.ttl), true
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping() error {
	ctx := context.Background()
	return c.client.Ping(ctx).Err()
}

var (
	_ EnumerableCache = (*RedisCache)(nil)
	_ RestorableCache = (*RedisCache)(nil)
)
