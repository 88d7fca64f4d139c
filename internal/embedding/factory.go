package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/config"
	"github.com/hyperjump/exasperation/internal/resilience"
)

// NewEmbedder builds the embedder selected by cfg.Provider, wrapped in an LRU cache
// when cfg.CacheSize > 0. Construction errors are returned as-is; there is no fallback provider.
func NewEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "mock":
		e = NewMockEmbedder(cfg.Dimensions)
	case FormatOpenAI, FormatOllama:
		e, err = NewHTTPEmbedder(HTTPEmbedderConfig{
			Format:     cfg.Provider,
			BaseURL:    cfg.BaseURL,
			APIKey:     config.Secret(cfg.APIKeyEnv),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Limiter:    resilience.NewLimiter(cfg.RateLimit, cfg.Burst),
			Logger:     logger,
		})
	case "onnx":
		e, err = newONNX(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, openai, ollama, onnx)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}

func newONNX(cfg config.EmbeddingConfig) (Embedder, error) {
	o, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		return nil, err
	}
	return o, nil
}
