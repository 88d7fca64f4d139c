package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/exasperation/pkg/utils"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIConfig configures NewOpenAIModel.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// OpenAIModel calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIModel struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIModel creates an OpenAI chat model. An API key is required.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIModel{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  client,
		limiter: cfg.Limiter,
		logger:  utils.OrNop(cfg.Logger),
	}, nil
}

func (m *OpenAIModel) Name() string { return "openai" }

// Generate performs one chat completion. Retries are left to the caller.
func (m *OpenAIModel) Generate(ctx context.Context, prompt Prompt, opts Options) (*Generation, error) {
	start := time.Now()
	model := opts.Model
	if model == "" {
		model = m.model
	}

	req := openAIChatRequest{Model: model, Stop: opts.Stop}
	if prompt.System != "" {
		req.Messages = append(req.Messages, openAIMessage{Role: "system", Content: prompt.System})
	}
	req.Messages = append(req.Messages, openAIMessage{Role: "user", Content: prompt.User})
	if opts.MaxTokens > 0 {
		req.MaxTokens = &opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}

	var resp openAIChatResponse
	if err := postJSON(ctx, m.client, m.limiter, m.Name(), m.baseURL+"/chat/completions", m.apiKey, req, &resp); err != nil {
		m.logger.Warn("chat completion failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, newProviderError(m.Name(), "empty_response", http.StatusOK, errors.New("no choices returned"))
	}

	gen := &Generation{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Latency:          time.Since(start),
	}
	if gen.Model == "" {
		gen.Model = model
	}
	return gen, nil
}
