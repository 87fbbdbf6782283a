// Package cache stores rendered API responses so repeated reads skip the
// query engine, and lets the purge notifier evict them by URL prefix.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache: miss")

// Cache is implemented by the memory and Redis backends. Keys are the URL
// keys built by KeyGenerator; backends add their own namespace prefix.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value for ttl. Zero means the backend default, negative
	// means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix and reports how
	// many live entries went away
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CacheConfig holds settings shared by the backends
type CacheConfig struct {
	DefaultTTL time.Duration
	Prefix     string
	// MaxEntries bounds the memory backend; zero is unbounded
	MaxEntries int
}

// DefaultCacheConfig returns a five minute TTL under the "contentapi:" namespace
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "contentapi:",
		MaxEntries: 10000,
	}
}

// IsCacheMiss reports whether err is a miss rather than a backend failure
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
