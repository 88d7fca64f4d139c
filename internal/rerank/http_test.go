package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/exasperation/internal/config"
	"github.com/hyperjump/exasperation/internal/resilience"
)

func TestHTTPReranker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "password reset", req.Query)
		assert.Equal(t, "bge-reranker", req.Model)
		require.Len(t, req.Documents, 2)
		_, _ = w.Write([]byte(`{"results":[{"id":"b","score":0.9},{"id":"a","score":0.2}]}`))
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(HTTPConfig{URL: srv.URL + "/", Model: "bge-reranker"})
	require.NoError(t, err)
	assert.Equal(t, "bge-reranker", r.Name())

	scores, err := r.Rerank(context.Background(), "password reset", []Document{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}})
	require.NoError(t, err)
	assert.Equal(t, []Score{{ID: "b", Score: 0.9}, {ID: "a", Score: 0.2}}, scores)
}

func TestHTTPReranker_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(HTTPConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = r.Rerank(context.Background(), "q", []Document{{ID: "a"}})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	scores, err := r.Rerank(context.Background(), "q", nil)
	assert.NoError(t, err)
	assert.Empty(t, scores)
}

func TestNewReranker(t *testing.T) {
	r, err := NewReranker(config.RerankConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = NewReranker(config.RerankConfig{Provider: "heuristic"})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", r.Name())

	_, err = NewReranker(config.RerankConfig{Provider: "http"})
	assert.Error(t, err)

	_, err = NewReranker(config.RerankConfig{Provider: "cohere"})
	assert.Error(t, err)
}
