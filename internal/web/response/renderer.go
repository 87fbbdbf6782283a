// Package response renders JSON bodies and error envelopes
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ContentTypeJSON is sent with every JSON body
const ContentTypeJSON = "application/json"

// RendererConfig configures the renderer
type RendererConfig struct {
	PrettyPrint bool
	Indent      string
}

// Renderer handles rendering of HTTP responses
type Renderer struct {
	prettyPrint    bool
	indent         string
	defaultHeaders map[string]string
}

// NewRenderer creates a compact JSON renderer
func NewRenderer() *Renderer {
	return NewRendererWithConfig(&RendererConfig{})
}

// NewRendererWithPrettyPrint creates a renderer indenting with four spaces
func NewRendererWithPrettyPrint() *Renderer {
	return NewRendererWithConfig(&RendererConfig{PrettyPrint: true, Indent: "    "})
}

// NewRendererWithConfig creates a renderer with custom configuration
func NewRendererWithConfig(config *RendererConfig) *Renderer {
	indent := config.Indent
	if config.PrettyPrint && indent == "" {
		indent = "    "
	}
	return &Renderer{
		prettyPrint:    config.PrettyPrint,
		indent:         indent,
		defaultHeaders: make(map[string]string),
	}
}

// SetDefaultHeader sets a default header for all responses
func (r *Renderer) SetDefaultHeader(key, value string) {
	r.defaultHeaders[key] = value
}

// JSON renders a JSON response
func (r *Renderer) JSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	return r.JSONWithHeaders(w, statusCode, data, nil)
}

// JSONWithHeaders renders a JSON response with custom headers
func (r *Renderer) JSONWithHeaders(w http.ResponseWriter, statusCode int, data interface{}, headers map[string]string) error {
	body, err := r.Marshal(data)
	if err != nil {
		return err
	}

	for key, value := range r.defaultHeaders {
		w.Header().Set(key, value)
	}
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", ContentTypeJSON)

	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// Marshal encodes data the way JSON writes it
func (r *Renderer) Marshal(data interface{}) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if r.prettyPrint {
		body, err = json.MarshalIndent(data, "", r.indent)
	} else {
		body, err = json.Marshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(body, '\n'), nil
}
