package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/exasperation/internal/resilience"
	"github.com/hyperjump/exasperation/pkg/utils"
)

// Wire formats understood by HTTPEmbedder.
const (
	FormatOpenAI = "openai"
	FormatOllama = "ollama"
)

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint or Ollama's /api/embeddings.
// It makes a single attempt per call; retries belong to the caller's resilience policy.
type HTTPEmbedder struct {
	format     string
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// HTTPEmbedderConfig configures NewHTTPEmbedder.
type HTTPEmbedderConfig struct {
	Format     string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Limiter    *rate.Limiter
	Client     *http.Client
	Logger     *zap.Logger
}

// NewHTTPEmbedder creates an HTTP embedder. The OpenAI format requires an API key.
func NewHTTPEmbedder(cfg HTTPEmbedderConfig) (*HTTPEmbedder, error) {
	switch cfg.Format {
	case FormatOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai embeddings: missing API key")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "text-embedding-3-small"
		}
	case FormatOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
		if cfg.Model == "" {
			cfg.Model = "nomic-embed-text"
		}
	default:
		return nil, fmt.Errorf("unknown embedding format: %s", cfg.Format)
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPEmbedder{
		format:     cfg.Format,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     client,
		limiter:    cfg.Limiter,
		logger:     utils.OrNop(cfg.Logger),
	}, nil
}

// Embed returns a unit-length embedding for text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one request for the OpenAI format, one per request for Ollama.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.format == FormatOllama {
		return embedEach(ctx, e, texts)
	}
	return e.embed(ctx, texts)
}

// Dimensions returns the configured embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HTTPEmbedder) Close() error {
	return nil
}

func (e *HTTPEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := resilience.Wait(ctx, e.limiter); err != nil {
		return nil, err
	}

	var (
		url  string
		body any
	)
	if e.format == FormatOllama {
		url = e.baseURL + "/api/embeddings"
		body = map[string]string{"model": e.model, "prompt": texts[0]}
	} else {
		url = e.baseURL + "/embeddings"
		body = map[string]any{"model": e.model, "input": texts}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", e.format, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &resilience.StatusError{
			Service:    e.format + " embeddings",
			StatusCode: resp.StatusCode,
			Body:       utils.Truncate(string(payload), 200),
			RetryAfter: resilience.ParseRetryAfter(resp.Header),
		}
		e.logger.Warn("embedding request failed", zap.Int("status", resp.StatusCode), zap.Bool("retryable", statusErr.IsRetryable()))
		return nil, statusErr
	}

	vectors, err := e.decode(payload, len(texts))
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(v), e.dimensions)
		}
		utils.NormalizeL2(v)
	}
	return vectors, nil
}

func (e *HTTPEmbedder) decode(payload []byte, n int) ([][]float32, error) {
	if e.format == FormatOllama {
		var out struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("decode ollama embeddings: %w", err)
		}
		if len(out.Embedding) == 0 {
			return nil, errors.New("no embedding returned")
		}
		return [][]float32{out.Embedding}, nil
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode openai embeddings: %w", err)
	}
	if len(out.Data) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(out.Data))
	}
	vectors := make([][]float32, n)
	for i, d := range out.Data {
		idx := d.Index
		if idx < 0 || idx >= n || vectors[idx] != nil {
			idx = i
		}
		vectors[idx] = d.Embedding
	}
	return vectors, nil
}
