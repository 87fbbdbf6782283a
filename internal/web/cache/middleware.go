package cache

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CacheMiddlewareConfig holds configuration for the cache middleware
type CacheMiddlewareConfig struct {
	// Cache is the cache backend to use
	Cache Cache
	// KeyGenerator generates cache keys from requests
	KeyGenerator *KeyGenerator
	// TTL is the time-to-live for cached responses
	TTL time.Duration
	// SkipPaths is a list of paths to skip caching
	SkipPaths []string
	// CacheControl is the Cache-Control header to set on cached responses
	CacheControl string
	// Logger receives backend failures; nil discards them
	Logger *zap.Logger
}

// DefaultCacheMiddlewareConfig returns a default cache middleware configuration
func DefaultCacheMiddlewareConfig(cache Cache) CacheMiddlewareConfig {
	return CacheMiddlewareConfig{
		Cache:        cache,
		KeyGenerator: DefaultKeyGenerator(),
		TTL:          5 * time.Minute,
		CacheControl: "public, max-age=300",
	}
}

// CacheMiddleware serves GET responses from the cache and stores successful
// ones. Backend failures degrade to an uncached response.
func CacheMiddleware(config CacheMiddlewareConfig) func(http.Handler) http.Handler {
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := config.KeyGenerator.GenerateKey(r)

			data, err := config.Cache.Get(ctx, key)
			switch {
			case err == nil:
				var cached cachedResponse
				if err := json.Unmarshal(data, &cached); err == nil {
					w.Header().Set("X-Cache", "HIT")
					cached.write(w, r, config.CacheControl)
					return
				}
				logger.Warn("discarding undecodable cache entry", zap.String("key", key))
			case !IsCacheMiss(err):
				logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
			}

			rec := newResponseRecorder()
			next.ServeHTTP(rec, r)

			if rec.statusCode != http.StatusOK {
				rec.flush(w, "MISS")
				return
			}

			cached := cachedResponse{
				StatusCode:   rec.statusCode,
				Headers:      rec.header.Clone(),
				Body:         rec.body.Bytes(),
				ETag:         GenerateETag(rec.body.Bytes()),
				LastModified: time.Now().UTC(),
			}
			if encoded, err := json.Marshal(cached); err == nil {
				if err := config.Cache.Set(ctx, key, encoded, config.TTL); err != nil {
					logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
				}
			}

			w.Header().Set("X-Cache", "MISS")
			cached.write(w, r, config.CacheControl)
		})
	}
}

// cachedResponse represents a cached HTTP response
type cachedResponse struct {
	StatusCode   int
	Headers      http.Header
	Body         []byte
	ETag         string
	LastModified time.Time
}

func (c cachedResponse) write(w http.ResponseWriter, r *http.Request, cacheControl string) {
	for key, values := range c.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	SetCacheHeaders(w, c.ETag, c.LastModified, cacheControl)
	if CheckConditionalRequest(w, r, c.ETag, c.LastModified) {
		return
	}
	w.WriteHeader(c.StatusCode)
	w.Write(c.Body)
}

// responseRecorder buffers a handler's response so cache headers can be
// added before anything reaches the client
type responseRecorder struct {
	header      http.Header
	statusCode  int
	body        *bytes.Buffer
	wroteHeader bool
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header:     make(http.Header),
		statusCode: http.StatusOK,
		body:       new(bytes.Buffer),
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.wroteHeader {
		r.statusCode = statusCode
		r.wroteHeader = true
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(b)
}

// flush copies the buffered response to w unchanged
func (r *responseRecorder) flush(w http.ResponseWriter, status string) {
	for key, values := range r.header {
		w.Header()[key] = values
	}
	w.Header().Set("X-Cache", status)
	w.WriteHeader(r.statusCode)
	w.Write(r.body.Bytes())
}
