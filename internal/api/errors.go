package api

import (
	"fmt"
	"net/http"
)

// Error is a request-fatal failure carrying the status it is rendered with.
// Only 400 and 404 are produced by the engine.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// BadRequest reports a malformed or unsupported query
func BadRequest(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unresolvable type, parent or object
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}
