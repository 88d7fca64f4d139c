package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/config"
	"github.com/hyperjump/exasperation/internal/resilience"
)

// NewLanguageModel builds the model selected by cfg.Provider.
func NewLanguageModel(cfg config.LLMConfig, logger *zap.Logger) (LanguageModel, error) {
	limiter := resilience.NewLimiter(cfg.RateLimit, cfg.Burst)
	switch cfg.Provider {
	case "mock":
		return NewMockModel(cfg.Model), nil
	case "openai":
		m, err := NewOpenAIModel(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  config.Secret(cfg.APIKeyEnv),
			Model:   cfg.Model,
			Limiter: limiter,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "ollama":
		return NewOllamaModel(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Limiter: limiter,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: mock, openai, ollama)", cfg.Provider)
	}
}
