package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/exasperation/internal/resilience"
)

func TestHTTPEmbedder_OpenAI(t *testing.T) {
	var gotAuth string
	var gotInput []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotInput = body.Input
		// Reply out of order to exercise index mapping.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,2,0]},{"index":0,"embedding":[3,0,0]}]}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPEmbedderConfig{Format: FormatOpenAI, BaseURL: srv.URL + "/v1", APIKey: "sk-test", Dimensions: 3})
	require.NoError(t, err)

	out, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, []string{"first", "second"}, gotInput)
	assert.Equal(t, []float32{1, 0, 0}, out[0])
	assert.Equal(t, []float32{0, 1, 0}, out[1])
}

func TestHTTPEmbedder_Ollama(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"embedding":[0,0,5]}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPEmbedderConfig{Format: FormatOllama, BaseURL: srv.URL, Dimensions: 3})
	require.NoError(t, err)

	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []float32{0, 0, 1}, out[1])
}

func TestHTTPEmbedder_StatusErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPEmbedderConfig{Format: FormatOpenAI, BaseURL: srv.URL, APIKey: "k", Dimensions: 3})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "q")
	require.Error(t, err)
	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.IsRetryable())
	assert.Equal(t, 2, int(se.RetryAfter.Seconds()))

	status = http.StatusUnauthorized
	_, err = e.Embed(context.Background(), "q")
	require.ErrorAs(t, err, &se)
	assert.False(t, resilience.IsTransient(err))
}

func TestHTTPEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPEmbedderConfig{Format: FormatOpenAI, BaseURL: srv.URL, APIKey: "k", Dimensions: 3})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "q")
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestNewHTTPEmbedder_Validation(t *testing.T) {
	_, err := NewHTTPEmbedder(HTTPEmbedderConfig{Format: FormatOpenAI, Dimensions: 3})
	assert.ErrorContains(t, err, "API key")

	_, err = NewHTTPEmbedder(HTTPEmbedderConfig{Format: "cohere", Dimensions: 3})
	assert.Error(t, err)

	_, err = NewHTTPEmbedder(HTTPEmbedderConfig{Format: FormatOllama})
	assert.Error(t, err)
}
