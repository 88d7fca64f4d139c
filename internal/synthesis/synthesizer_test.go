package synthesis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/llm"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/resilience"
)

type stubModel struct {
	text  string
	errs  []error
	calls atomic.Int32
	last  llm.Prompt
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Generate(ctx context.Context, p llm.Prompt, o llm.Options) (*llm.Generation, error) {
	n := int(s.calls.Add(1))
	s.last = p
	if n <= len(s.errs) && s.errs[n-1] != nil {
		return nil, s.errs[n-1]
	}
	return &llm.Generation{Text: s.text, Model: "stub-1", PromptTokens: 100, CompletionTokens: 10}, nil
}

func twoEntries() *models.ContextWindow {
	return window(
		&models.Chunk{ID: "a", Title: "Reset in Okta", Content: "Okta reset steps."},
		&models.Chunk{ID: "b", Title: "Reset in Azure AD", Content: "Azure AD reset steps."},
	)
}

func TestSynthesize(t *testing.T) {
	m := &stubModel{text: "Use self-service reset [2] or the admin console [1, 4]."}
	s := NewSynthesizer(m)

	answer, err := s.Synthesize(context.Background(), "how to reset a password", twoEntries())
	require.NoError(t, err)
	assert.Equal(t, "Use self-service reset [2] or the admin console [1].", answer.Text)
	assert.Equal(t, []int{2, 1}, answer.Citations)
	assert.Equal(t, "stub-1", answer.Model)
	assert.Equal(t, string(PromptTechnical), answer.PromptType)
	assert.Equal(t, 100, answer.PromptTokens)
	assert.Positive(t, answer.PromptChars)
	assert.Contains(t, m.last.User, "[2] Reset in Azure AD")
}

func TestSynthesize_EmptyWindow(t *testing.T) {
	m := &stubModel{text: "x"}
	_, err := NewSynthesizer(m).Synthesize(context.Background(), "q", &models.ContextWindow{})
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Zero(t, m.calls.Load())
}

func TestSynthesize_Failure(t *testing.T) {
	m := &stubModel{errs: []error{errors.New("model offline"), errors.New("model offline")}}
	_, err := NewSynthesizer(m).Synthesize(context.Background(), "q", twoEntries())
	assert.True(t, apperrors.IsSynthesisUnavailable(err))
	assert.Equal(t, int32(1), m.calls.Load())
}

func TestSynthesize_RetriesTransientOnce(t *testing.T) {
	transient := &llm.ProviderError{Provider: "stub", Code: "rate_limit", StatusCode: 429, Retryable: true, Err: errors.New("slow down")}

	m := &stubModel{text: "ok [1]", errs: []error{transient}}
	answer, err := NewSynthesizer(m, WithPolicy(resilience.Policy{MaxRetries: 1})).Synthesize(context.Background(), "q", twoEntries())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, answer.Citations)
	assert.Equal(t, int32(2), m.calls.Load())

	m = &stubModel{errs: []error{transient, transient, transient}}
	_, err = NewSynthesizer(m, WithPolicy(resilience.Policy{MaxRetries: 5})).Synthesize(context.Background(), "q", twoEntries())
	assert.True(t, apperrors.IsSynthesisUnavailable(err))
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestSynthesize_EmptyCompletion(t *testing.T) {
	m := &stubModel{text: ""}
	_, err := NewSynthesizer(m).Synthesize(context.Background(), "q", twoEntries())
	assert.True(t, apperrors.IsSynthesisUnavailable(err))
}

func TestSynthesize_WithMockModel(t *testing.T) {
	answer, err := NewSynthesizer(llm.NewMockModel("")).Synthesize(context.Background(), "what is a parser", twoEntries())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, answer.Citations)
	assert.Equal(t, "mock-model", answer.Model)
}
