// Package llm defines the language model capability and its adapters.
package llm

import (
	"context"
	"time"
)

// LanguageModel turns a prompt into generated text.
type LanguageModel interface {
	Generate(ctx context.Context, prompt Prompt, opts Options) (*Generation, error)
	Name() string
}

// Prompt is a system instruction plus the user turn.
type Prompt struct {
	System string
	User   string
}

// Len returns the prompt size in bytes.
func (p Prompt) Len() int {
	return len(p.System) + len(p.User)
}

// Options are per-call generation parameters. Zero values use the model's defaults.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Generation is a model completion with usage counters.
type Generation struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}
