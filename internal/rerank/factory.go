package rerank

import (
	"fmt"

	"github.com/hyperjump/exasperation/internal/config"
	"github.com/hyperjump/exasperation/internal/resilience"
)

// NewReranker builds the reranker selected by cfg.Provider.
// "none" returns a nil Reranker, meaning reranking is not configured.
func NewReranker(cfg config.RerankConfig) (Reranker, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "heuristic":
		return NewHeuristicReranker(), nil
	case "http":
		r, err := NewHTTPReranker(HTTPConfig{
			URL:     cfg.URL,
			Model:   cfg.Model,
			APIKey:  config.Secret(cfg.APIKeyEnv),
			Limiter: resilience.NewLimiter(cfg.RateLimit, cfg.Burst),
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown reranker: %s (supported: none, heuristic, http)", cfg.Provider)
	}
}
