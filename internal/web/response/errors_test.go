package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRenderError(t *testing.T) {
	w := httptest.NewRecorder()

	RenderError(w, http.StatusBadRequest, "limit must be a positive integer")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %v, want %v", w.Code, http.StatusBadRequest)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp["message"] != "limit must be a positive integer" {
		t.Errorf("body = %v, want only the message key", resp)
	}
}

func TestHTTPError(t *testing.T) {
	err := NewHTTPError(http.StatusNotFound, "Type doesn't exist")
	if err.Error() != "Type doesn't exist" {
		t.Errorf("Error() = %q", err.Error())
	}

	w := httptest.NewRecorder()
	err.Render(w)

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %v, want 404", w.Code)
	}
	var resp ErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Message != "Type doesn't exist" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestRenderHelpers(t *testing.T) {
	tests := []struct {
		name    string
		render  func(http.ResponseWriter)
		status  int
		message string
	}{
		{"bad request", func(w http.ResponseWriter) { RenderBadRequest(w, "bad") }, http.StatusBadRequest, "bad"},
		{"not found default", func(w http.ResponseWriter) { RenderNotFound(w, "") }, http.StatusNotFound, "Not found."},
		{"method not allowed", func(w http.ResponseWriter) { RenderMethodNotAllowed(w, []string{"GET", "HEAD"}) }, http.StatusMethodNotAllowed, "method not allowed"},
		{"internal", RenderInternalError, http.StatusInternalServerError, "internal server error"},
		{"unavailable", func(w http.ResponseWriter) { RenderServiceUnavailable(w, "") }, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.render(w)

			if w.Code != tt.status {
				t.Errorf("status code = %v, want %v", w.Code, tt.status)
			}
			var resp ErrorResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Message, tt.message)
			}
		})
	}
}

func TestRenderMethodNotAllowed_AllowHeader(t *testing.T) {
	w := httptest.NewRecorder()
	RenderMethodNotAllowed(w, []string{"GET", "HEAD"})

	if got := w.Header().Get("Allow"); got != "GET, HEAD" {
		t.Errorf("Allow = %q, want %q", got, "GET, HEAD")
	}
}
