// Package synthesis prompts the language model with an assembled context window
// and turns its completion into a cited answer.
package synthesis

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/llm"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/resilience"
	"github.com/hyperjump/exasperation/pkg/utils"
)

var errEmptyCompletion = errors.New("model returned an empty completion")

// Synthesizer generates answers grounded in a context window.
type Synthesizer struct {
	model  llm.LanguageModel
	policy resilience.Policy
	opts   llm.Options
	logger *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithPolicy sets the timeout and retry policy for model calls.
func WithPolicy(p resilience.Policy) Option {
	return func(s *Synthesizer) { s.policy = p }
}

// WithGenerationOptions sets the model, temperature and token limit passed on each call.
func WithGenerationOptions(o llm.Options) Option {
	return func(s *Synthesizer) { s.opts = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) { s.logger = utils.OrNop(l) }
}

// NewSynthesizer creates a synthesizer over model.
func NewSynthesizer(model llm.LanguageModel, opts ...Option) *Synthesizer {
	s := &Synthesizer{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize answers query from w. An empty window is rejected without calling the model.
// Model failures, after the policy's retry, return SynthesisUnavailable.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, w *models.ContextWindow) (*models.Answer, error) {
	if w.Len() == 0 {
		return nil, apperrors.InvalidInput("context window is empty")
	}

	prompt, pt := BuildPrompt(query, w)
	start := time.Now()
	gen, err := resilience.Do(ctx, s.policy, func(ctx context.Context) (*llm.Generation, error) {
		g, err := s.model.Generate(ctx, prompt, s.opts)
		if err != nil {
			return nil, err
		}
		if g == nil || g.Text == "" {
			return nil, errEmptyCompletion
		}
		return g, nil
	})
	if err != nil {
		s.logger.Warn("synthesis failed",
			zap.String("model", s.model.Name()),
			zap.String("prompt_type", string(pt)),
			zap.Error(err))
		return nil, apperrors.SynthesisUnavailable(err)
	}

	text, citations := ParseCitations(gen.Text, w.Len())
	answer := &models.Answer{
		Text:             text,
		Citations:        citations,
		Model:            gen.Model,
		PromptType:       string(pt),
		PromptChars:      utf8.RuneCountInString(prompt.System) + utf8.RuneCountInString(prompt.User),
		CompletionChars:  utf8.RuneCountInString(gen.Text),
		PromptTokens:     gen.PromptTokens,
		CompletionTokens: gen.CompletionTokens,
		Latency:          time.Since(start),
	}
	s.logger.Debug("answer synthesized",
		zap.String("prompt_type", answer.PromptType),
		zap.Int("context_entries", w.Len()),
		zap.Ints("citations", citations),
		zap.Duration("latency", answer.Latency))
	return answer, nil
}
