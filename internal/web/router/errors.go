package router

import (
	"net/http"

	"github.com/conduit-lang/contentapi/internal/web/response"
)

// NotFoundHandler answers unknown paths with the API's JSON error envelope
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderNotFound(w, "Not found.")
	}
}

// MethodNotAllowedHandler answers every method but GET and HEAD
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderMethodNotAllowed(w, []string{http.MethodGet, http.MethodHead, http.MethodOptions})
	}
}

// SetupDefaultErrorHandlers configures the router with JSON error handlers
func SetupDefaultErrorHandlers(r *Router) {
	r.NotFound(NotFoundHandler())
	r.MethodNotAllowed(MethodNotAllowedHandler())
}
