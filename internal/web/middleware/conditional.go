package middleware

import (
	"net/http"
	"strings"
)

// Predicate is a function that determines if middleware should be applied
type Predicate func(*http.Request) bool

// Conditional wraps middleware to only apply it when a predicate is true.
// The wrapped handler is built once, not per request.
func Conditional(predicate Predicate, middleware Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		wrapped := middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if predicate(r) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PathPrefix matches requests whose path starts with prefix
func PathPrefix(prefix string) Predicate {
	return func(r *http.Request) bool {
		return strings.HasPrefix(r.URL.Path, prefix)
	}
}

// Method matches requests with one of the given methods
func Method(methods ...string) Predicate {
	return func(r *http.Request) bool {
		for _, m := range methods {
			if r.Method == m {
				return true
			}
		}
		return false
	}
}

// And combines multiple predicates with logical AND
func And(predicates ...Predicate) Predicate {
	return func(r *http.Request) bool {
		for _, p := range predicates {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Not negates a predicate
func Not(predicate Predicate) Predicate {
	return func(r *http.Request) bool {
		return !predicate(r)
	}
}
