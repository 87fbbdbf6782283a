package response

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Message string `json:"message"`
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// Render renders the HTTP error as a response
func (e *HTTPError) Render(w http.ResponseWriter) {
	RenderError(w, e.StatusCode, e.Message)
}

// RenderError renders a {"message": ...} error response
func RenderError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(&ErrorResponse{Message: message})
}

// RenderBadRequest renders a 400 Bad Request error
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderError(w, http.StatusBadRequest, message)
}

// RenderNotFound renders a 404 Not Found error
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Not found."
	}
	RenderError(w, http.StatusNotFound, message)
}

// RenderMethodNotAllowed renders a 405 Method Not Allowed error
func RenderMethodNotAllowed(w http.ResponseWriter, allowedMethods []string) {
	if len(allowedMethods) > 0 {
		w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
	}
	RenderError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// RenderInternalError renders a 500 Internal Server Error. Internal details
// are never exposed; callers log the cause.
func RenderInternalError(w http.ResponseWriter) {
	RenderError(w, http.StatusInternalServerError, "internal server error")
}

// RenderServiceUnavailable renders a 503 Service Unavailable error
func RenderServiceUnavailable(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	RenderError(w, http.StatusServiceUnavailable, message)
}
