package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, DefaultCacheConfig())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func backends(t *testing.T) map[string]Cache {
	t.Helper()
	mem := NewMemoryCache()
	t.Cleanup(func() { mem.Close() })
	rc, _ := setupTestRedis(t)
	return map[string]Cache{"memory": mem, "redis": rc}
}

func TestCacheBackends(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.Get(ctx, "missing")
			assert.True(t, IsCacheMiss(err))

			require.NoError(t, c.Set(ctx, "http:localhost/api/v1/pages/2/", []byte("two"), time.Minute))
			got, err := c.Get(ctx, "http:localhost/api/v1/pages/2/")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			ok, err := c.Exists(ctx, "http:localhost/api/v1/pages/2/")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, c.Delete(ctx, "http:localhost/api/v1/pages/2/"))
			ok, err = c.Exists(ctx, "http:localhost/api/v1/pages/2/")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCacheDeletePrefix(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			keys := []string{
				"http:localhost/api/v1/pages/2/",
				"http:localhost/api/v1/pages/2/?fields=title",
				"http:localhost/api/v1/pages/20/",
				"http:other.example.com/api/v1/pages/2/",
			}
			for _, k := range keys {
				require.NoError(t, c.Set(ctx, k, []byte("x"), time.Minute))
			}

			n, err := c.DeletePrefix(ctx, "http:localhost/api/v1/pages/2/")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			for k, want := range map[string]bool{keys[0]: false, keys[1]: false, keys[2]: true, keys[3]: true} {
				ok, err := c.Exists(ctx, k)
				require.NoError(t, err)
				assert.Equal(t, want, ok, k)
			}

			require.NoError(t, c.Clear(ctx))
			ok, err := c.Exists(ctx, keys[2])
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCacheWithConfig(CacheConfig{DefaultTTL: 10 * time.Millisecond})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), -1))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryCacheMaxEntries(t *testing.T) {
	c := NewMemoryCacheWithConfig(CacheConfig{DefaultTTL: time.Hour, MaxEntries: 2})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "soon", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "later", []byte("2"), time.Hour))
	// overwriting an existing key never evicts
	require.NoError(t, c.Set(ctx, "later", []byte("2b"), time.Hour))
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Set(ctx, "new", []byte("3"), time.Hour))
	assert.Equal(t, 2, c.Len())

	_, err := c.Get(ctx, "soon")
	assert.ErrorIs(t, err, ErrCacheMiss)
	got, err := c.Get(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, []byte("2b"), got)
}

func TestMemoryCacheCancelledContext(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Set(ctx, "k", []byte("v"), time.Minute), context.Canceled)
	_, err := c.DeletePrefix(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisCacheTTL(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, 5*time.Minute, mr.TTL("contentapi:k"))

	mr.FastForward(6 * time.Minute)
	_, err := c.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestNewRedisCacheWithConfig(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	c, err := NewRedisCacheWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	mr.Close()
	_, err = NewRedisCacheWithConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestKeyGenerator(t *testing.T) {
	kg := DefaultKeyGenerator()

	a := kg.GenerateKey(newRequest(t, "http://LocalHost/api/v1/pages/?type=tests.BlogEntryPage&fields=title,date"))
	b := kg.GenerateKey(newRequest(t, "http://localhost/api/v1/pages/?fields=title,date&type=tests.BlogEntryPage"))

	assert.Equal(t, a, b)
	assert.Equal(t, "http:localhost/api/v1/pages/?fields=title%2Cdate&type=tests.BlogEntryPage", a)
	assert.NotEqual(t,
		kg.GenerateKey(newRequest(t, "http://localhost/api/v1/pages/?title=a&title=b")),
		kg.GenerateKey(newRequest(t, "http://localhost/api/v1/pages/?title=b&title=a")))
	assert.Equal(t, "http:localhost/api/v1/pages/", kg.PathKey("localhost", "/api/v1/pages/"))

	noHost := &KeyGenerator{Prefix: "p:"}
	assert.Equal(t, "p:/api/v1/images/", noHost.GenerateKey(newRequest(t, "http://localhost/api/v1/images/?limit=2")))
}
