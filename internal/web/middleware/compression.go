package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// Level is the gzip compression level (1-9, default 6)
	Level int
	// MinSize is the smallest first write worth compressing
	MinSize int
	// ContentTypes lists the compressible media type prefixes. A response
	// without a Content-Type is never compressed.
	ContentTypes []string
}

// DefaultCompressionConfig compresses JSON and text of 1KB or more
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:        gzip.DefaultCompression,
		MinSize:      1024,
		ContentTypes: []string{"application/json", "text/"},
	}
}

// Compression creates a compression middleware with default configuration
func Compression() Middleware {
	return CompressionWithConfig(DefaultCompressionConfig())
}

// CompressionWithConfig gzips responses for clients that accept it
func CompressionWithConfig(config CompressionConfig) Middleware {
	pool := &sync.Pool{
		New: func() interface{} {
			writer, err := gzip.NewWriterLevel(io.Discard, config.Level)
			if err != nil {
				writer = gzip.NewWriter(io.Discard)
			}
			return writer
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{ResponseWriter: w, pool: pool, config: config}
			defer gzw.Close()
			next.ServeHTTP(gzw, r)
		})
	}
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(coding) != "gzip" {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

// gzipResponseWriter decides on the first write whether to compress, so
// small bodies and non-2xx statuses go out untouched
type gzipResponseWriter struct {
	http.ResponseWriter
	pool   *sync.Pool
	config CompressionConfig
	gz     *gzip.Writer

	status  int
	decided bool
}

func (gzw *gzipResponseWriter) WriteHeader(statusCode int) {
	if gzw.status == 0 {
		gzw.status = statusCode
	}
	if statusCode == http.StatusNoContent || statusCode == http.StatusNotModified {
		gzw.decide(0)
	}
}

func (gzw *gzipResponseWriter) Write(b []byte) (int, error) {
	if gzw.status == 0 {
		gzw.status = http.StatusOK
	}
	if !gzw.decided {
		gzw.decide(len(b))
	}
	if gzw.gz != nil {
		return gzw.gz.Write(b)
	}
	return gzw.ResponseWriter.Write(b)
}

// decide sends the status line, with Content-Encoding when compressing
func (gzw *gzipResponseWriter) decide(size int) {
	if gzw.decided {
		return
	}
	gzw.decided = true

	h := gzw.ResponseWriter.Header()
	if size >= gzw.config.MinSize && h.Get("Content-Encoding") == "" && gzw.compressible(h.Get("Content-Type")) {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		gzw.gz = gzw.pool.Get().(*gzip.Writer)
		gzw.gz.Reset(gzw.ResponseWriter)
	}
	gzw.ResponseWriter.WriteHeader(gzw.status)
}

func (gzw *gzipResponseWriter) compressible(contentType string) bool {
	for _, prefix := range gzw.config.ContentTypes {
		if contentType != "" && strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// Close flushes the compressed stream, or the bare status of an empty response
func (gzw *gzipResponseWriter) Close() error {
	if !gzw.decided {
		if gzw.status == 0 {
			return nil
		}
		gzw.decide(0)
	}
	if gzw.gz == nil {
		return nil
	}
	err := gzw.gz.Close()
	gzw.pool.Put(gzw.gz)
	gzw.gz = nil
	return err
}
