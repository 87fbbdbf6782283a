package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-process limiter. Each key gets Capacity tokens that
// refill evenly over Window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time

	done chan struct{}
	once sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewTokenBucket creates a limiter allowing capacity requests per window. A
// positive cleanup interval drops buckets idle for two windows.
func NewTokenBucket(capacity int, window, cleanup time.Duration) *TokenBucket {
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	if cleanup > 0 {
		go tb.cleanupLoop(cleanup)
	}
	return tb
}

// Allow implements Limiter
func (tb *TokenBucket) Allow(_ context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.capacity), seen: now}
		tb.buckets[key] = b
	}

	capacity := float64(tb.capacity)
	refill := float64(now.Sub(b.seen)) / float64(tb.window) * capacity
	b.tokens = min(capacity, b.tokens+refill)
	b.seen = now

	info := &Info{Limit: tb.capacity}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = int(b.tokens)

	missing := capacity - b.tokens
	info.ResetAt = now.Add(time.Duration(missing / capacity * float64(tb.window)))
	return info, nil
}

func (tb *TokenBucket) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tb.cleanup()
		case <-tb.done:
			return
		}
	}
}

func (tb *TokenBucket) cleanup() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cutoff := tb.now().Add(-2 * tb.window)
	for key, b := range tb.buckets {
		if b.seen.Before(cutoff) {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine
func (tb *TokenBucket) Close() error {
	tb.once.Do(func() { close(tb.done) })
	return nil
}
