package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/conduit-lang/contentapi/internal/web/response"
)

// TimeoutConfig holds configuration for the timeout middleware
type TimeoutConfig struct {
	Timeout time.Duration
	// Message is the body of the 504 sent when the handler overruns
	Message string
}

// DefaultTimeoutConfig returns a 30 second timeout
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Timeout: 30 * time.Second, Message: "request timeout"}
}

// Timeout bounds every request to d
func Timeout(d time.Duration) Middleware {
	config := DefaultTimeoutConfig()
	config.Timeout = d
	return TimeoutWithConfig(config)
}

// deadlineWriter forwards writes until the deadline passes, then drops them.
// The handler sets headers on a map of its own that is copied out on the
// first write, so the real header is never shared with the 504 path.
type deadlineWriter struct {
	w       http.ResponseWriter
	header  http.Header
	mu      sync.Mutex
	started bool
	expired bool
}

func newDeadlineWriter(w http.ResponseWriter) *deadlineWriter {
	return &deadlineWriter{w: w, header: make(http.Header)}
}

func (dw *deadlineWriter) Header() http.Header {
	return dw.header
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || dw.started {
		return
	}
	dw.startLocked()
	dw.w.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !dw.started {
		dw.startLocked()
	}
	return dw.w.Write(b)
}

func (dw *deadlineWriter) startLocked() {
	dw.started = true
	dst := dw.w.Header()
	for k, v := range dw.header {
		dst[k] = append([]string(nil), v...)
	}
}

// finish copies headers out for a handler that returned without writing
func (dw *deadlineWriter) finish() {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if !dw.started && !dw.expired {
		dw.startLocked()
	}
}

// expire blocks further writes and reports whether the response was untouched
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.started
}

// TimeoutWithConfig attaches the deadline to the request context. A handler
// still running when it passes gets its writes dropped, and the client gets a
// 504 unless part of the response was already sent.
func TimeoutWithConfig(config TimeoutConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), config.Timeout)
			defer cancel()

			dw := newDeadlineWriter(w)
			finished := make(chan struct{})
			panicked := make(chan any, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
						return
					}
					close(finished)
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-finished:
				dw.finish()
			case p := <-panicked:
				panic(p)
			case <-ctx.Done():
				untouched := dw.expire()
				if untouched && errors.Is(ctx.Err(), context.DeadlineExceeded) {
					response.RenderError(w, http.StatusGatewayTimeout, config.Message)
				}
			}
		})
	}
}
