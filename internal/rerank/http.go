package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hyperjump/exasperation/internal/resilience"
)

// HTTPReranker calls a cross-encoder service: POST {url}/v1/rerank with
// {"query", "model", "documents":[{"id","text"}]}, expecting {"results":[{"id","score"}]}.
type HTTPReranker struct {
	url     string
	model   string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPConfig configures NewHTTPReranker.
type HTTPConfig struct {
	URL     string
	Model   string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewHTTPReranker returns a reranker backed by a remote service.
func NewHTTPReranker(cfg HTTPConfig) (*HTTPReranker, error) {
	if cfg.URL == "" {
		return nil, errors.New("rerank url is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPReranker{
		url:     strings.TrimRight(cfg.URL, "/") + "/v1/rerank",
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: cfg.Limiter,
	}, nil
}

// Name returns the model name, or "http" when none is configured.
func (r *HTTPReranker) Name() string {
	if r.model != "" {
		return r.model
	}
	return "http"
}

type rerankRequest struct {
	Query     string           `json:"query"`
	Model     string           `json:"model,omitempty"`
	Documents []rerankDocument `json:"documents"`
}

type rerankDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type rerankResponse struct {
	Results []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank sends all documents in one request.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []Document) ([]Score, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if err := resilience.Wait(ctx, r.limiter); err != nil {
		return nil, err
	}
	body := rerankRequest{Query: query, Model: r.model, Documents: make([]rerankDocument, len(docs))}
	for i, d := range docs {
		body.Documents[i] = rerankDocument{ID: d.ID, Text: d.Text}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resilience.StatusError{
			Service:    "reranker",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
			RetryAfter: resilience.ParseRetryAfter(resp.Header),
		}
	}
	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	scores := make([]Score, len(out.Results))
	for i, res := range out.Results {
		scores[i] = Score{ID: res.ID, Score: res.Score}
	}
	return scores, nil
}
