package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var contextLabel = regexp.MustCompile(`(?m)^\[(\d+)\]`)

// MockModel answers from a fixed keyword table. It cites up to two context entries
// labelled "[n]" at the start of a line in the user prompt.
type MockModel struct {
	model string
}

// NewMockModel creates a mock model. An empty name defaults to "mock-model".
func NewMockModel(model string) *MockModel {
	if model == "" {
		model = "mock-model"
	}
	return &MockModel{model: model}
}

func (m *MockModel) Name() string { return "mock" }

// Generate returns a canned answer chosen by the question keywords.
func (m *MockModel) Generate(ctx context.Context, prompt Prompt, opts Options) (*Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	question := strings.ToLower(questionOf(prompt.User))
	var text string
	switch {
	case strings.Contains(question, "exabeam"):
		text = "Exabeam is a security analytics platform that provides SIEM, UEBA, and SOAR capabilities."
	case strings.Contains(question, "parser"):
		text = "Parsers in Exabeam extract relevant security information from log data."
	case strings.Contains(question, "mitre"), strings.Contains(question, "att&ck"):
		text = "The MITRE ATT&CK framework is a knowledge base of adversary tactics and techniques."
	default:
		text = "This is a mock response for testing purposes. No actual LLM was used."
	}

	var cites []string
	for _, match := range contextLabel.FindAllStringSubmatch(prompt.User, 2) {
		cites = append(cites, match[1])
	}
	if len(cites) > 0 {
		text = fmt.Sprintf("%s [%s]", text, strings.Join(cites, ", "))
	}

	model := opts.Model
	if model == "" {
		model = m.model
	}
	return &Generation{
		Text:             text,
		Model:            model,
		PromptTokens:     EstimateTokens(prompt.System + prompt.User),
		CompletionTokens: EstimateTokens(text),
		Latency:          time.Since(start),
	}, nil
}

// questionOf returns the text after the last "Question:" marker, or the whole prompt.
func questionOf(user string) string {
	if i := strings.LastIndex(user, "Question:"); i >= 0 {
		return user[i+len("Question:"):]
	}
	return user
}
