package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_JSONPretty(t *testing.T) {
	r := NewRendererWithPrettyPrint()
	w := httptest.NewRecorder()

	err := r.JSON(w, http.StatusOK, map[string]interface{}{"meta": map[string]int{"total_count": 1}})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "{\n    \"meta\": {\n        \"total_count\": 1\n    }\n}\n", w.Body.String())
}

func TestRenderer_JSONCompactWithHeaders(t *testing.T) {
	r := NewRenderer()
	r.SetDefaultHeader("X-Frame-Options", "DENY")
	w := httptest.NewRecorder()

	err := r.JSONWithHeaders(w, http.StatusCreated, []int{1, 2}, map[string]string{"X-Total": "2"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "[1,2]\n", w.Body.String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "2", w.Header().Get("X-Total"))
}

func TestRenderer_EncodeFailure(t *testing.T) {
	r := NewRenderer()
	w := httptest.NewRecorder()

	err := r.JSON(w, http.StatusOK, map[string]interface{}{"bad": make(chan int)})
	require.Error(t, err)
	// nothing is written when encoding fails so the caller can still send an error
	assert.Equal(t, 0, w.Body.Len())
	assert.Empty(t, w.Header().Get("Content-Type"))
}
