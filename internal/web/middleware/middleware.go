// Package middleware provides the HTTP middleware wrapped around the API:
// request ids, structured request logging, panic recovery, request timeouts
// and CORS for browser frontends.
package middleware

import "net/http"

// Middleware wraps an http.Handler
type Middleware func(http.Handler) http.Handler
