package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/web/response"
)

// RecoveryConfig holds configuration for the recovery middleware
type RecoveryConfig struct {
	// EnableStackTrace determines whether to log stack traces
	EnableStackTrace bool
	// Logger receives the recovered value and the stack
	Logger func(*http.Request, error, []byte)
	// ResponseHandler writes the response sent after a panic
	ResponseHandler func(http.ResponseWriter, *http.Request, interface{})
}

// Recovery creates a middleware that recovers from panics, logs them to
// logger and answers 500
func Recovery(logger *zap.Logger) Middleware {
	return RecoveryWithConfig(RecoveryConfig{
		EnableStackTrace: true,
		Logger: func(r *http.Request, err error, stack []byte) {
			logger.Error("panic recovered",
				zap.Error(err),
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.ByteString("stack", stack),
			)
		},
	})
}

// RecoveryWithConfig creates a recovery middleware with custom configuration
func RecoveryWithConfig(config RecoveryConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				var stack []byte
				if config.EnableStackTrace {
					stack = debug.Stack()
				}

				if config.Logger != nil {
					config.Logger(r, &panicError{value: rec}, stack)
				}

				if config.ResponseHandler != nil {
					config.ResponseHandler(w, r, rec)
				} else {
					response.RenderInternalError(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// panicError wraps a panic value as an error
type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", e.value)
}

func (e *panicError) Unwrap() error {
	err, _ := e.value.(error)
	return err
}
