package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// sweepInterval is how often expired entries are dropped in the background
const sweepInterval = time.Minute

// MemoryCache keeps responses in process. It is only useful for a single
// API instance since purges cannot reach other processes.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	config  CacheConfig
	stop    chan struct{}
	once    sync.Once
}

type entry struct {
	value   []byte
	expires time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

// NewMemoryCache creates a memory cache with DefaultCacheConfig
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultCacheConfig())
}

// NewMemoryCacheWithConfig creates a memory cache. Close stops its sweeper.
func NewMemoryCacheWithConfig(config CacheConfig) *MemoryCache {
	m := &MemoryCache{
		entries: make(map[string]entry),
		config:  config,
		stop:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	e, ok := m.entries[m.config.Prefix+key]
	m.mu.RUnlock()
	if !ok || !e.live(time.Now()) {
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	now := time.Now()
	e := entry{value: value}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}

	full := m.config.Prefix + key
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[full]; !exists && m.config.MaxEntries > 0 && len(m.entries) >= m.config.MaxEntries {
		m.evictLocked(now)
	}
	m.entries[full] = e
	return nil
}

// evictLocked drops expired entries, or the one expiring soonest when all
// are live
func (m *MemoryCache) evictLocked(now time.Time) {
	var (
		victim string
		soonest time.Time
	)
	for k, e := range m.entries {
		if !e.live(now) {
			delete(m.entries, k)
			continue
		}
		if e.expires.IsZero() {
			continue
		}
		if victim == "" || e.expires.Before(soonest) {
			victim, soonest = k, e.expires
		}
	}
	if len(m.entries) < m.config.MaxEntries {
		return
	}
	if victim == "" {
		// only entries without expiry remain
		for k := range m.entries {
			victim = k
			break
		}
	}
	delete(m.entries, victim)
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, m.config.Prefix+key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	full := m.config.Prefix + prefix
	now := time.Now()
	removed := 0

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if !strings.HasPrefix(k, full) {
			continue
		}
		if e.live(now) {
			removed++
		}
		delete(m.entries, k)
	}
	return removed, nil
}

func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if IsCacheMiss(err) {
		return false, nil
	}
	return err == nil, err
}

// Len returns the number of stored entries, expired ones included
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the sweeper. It is safe to call more than once.
func (m *MemoryCache) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.live(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
