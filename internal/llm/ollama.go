package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/exasperation/pkg/utils"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.2"
)

// OllamaConfig configures NewOllamaModel.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// OllamaModel calls Ollama's /api/chat without streaming.
type OllamaModel struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// NewOllamaModel creates an Ollama chat model.
func NewOllamaModel(cfg OllamaConfig) *OllamaModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaModel{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  client,
		limiter: cfg.Limiter,
		logger:  utils.OrNop(cfg.Logger),
	}
}

func (m *OllamaModel) Name() string { return "ollama" }

// Generate performs one non-streaming chat call.
func (m *OllamaModel) Generate(ctx context.Context, prompt Prompt, opts Options) (*Generation, error) {
	start := time.Now()
	model := opts.Model
	if model == "" {
		model = m.model
	}

	req := ollamaChatRequest{Model: model}
	if prompt.System != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: prompt.System})
	}
	req.Messages = append(req.Messages, ollamaMessage{Role: "user", Content: prompt.User})
	if opts.MaxTokens > 0 || opts.Temperature > 0 || len(opts.Stop) > 0 {
		req.Options = &ollamaOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        opts.Stop,
		}
	}

	var resp ollamaChatResponse
	if err := postJSON(ctx, m.client, m.limiter, m.Name(), m.baseURL+"/api/chat", "", req, &resp); err != nil {
		m.logger.Warn("ollama chat failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}

	text := strings.TrimSpace(resp.Message.Content)
	gen := &Generation{
		Text:             text,
		Model:            resp.Model,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		Latency:          time.Since(start),
	}
	if gen.Model == "" {
		gen.Model = model
	}
	if gen.PromptTokens == 0 {
		gen.PromptTokens = EstimateTokens(prompt.System + prompt.User)
	}
	if gen.CompletionTokens == 0 {
		gen.CompletionTokens = EstimateTokens(text)
	}
	return gen, nil
}
