package suggest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/exasperation/internal/keyword"
)

func TestComplete_Empty(t *testing.T) {
	got, err := NewGenerator(nil).Complete(context.Background(), "  ", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultCompletions, got)
}

func TestComplete_StaticTables(t *testing.T) {
	g := NewGenerator(nil)

	got, err := g.Complete(context.Background(), "where can", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Where can I find documentation on data sources?",
		"Where can I configure authentication settings?",
	}, got)

	got, err = g.Complete(context.Background(), "can", 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 4)
	assert.Equal(t, "Can Exabeam integrate with Splunk?", got[0])
}

func TestComplete_ContainsAfterPrefix(t *testing.T) {
	got, err := NewGenerator(nil).Complete(context.Background(), "parser", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"How do I create a custom parser?",
		"How does Exabeam detect threats?",
		"What are the components of Advanced Analytics?",
	}, got)
}

func TestComplete_CorpusFirst(t *testing.T) {
	src := &fakeSource{complete: []keyword.Phrase{{Text: "Okta password reset", Kind: keyword.KindTitle}}}
	got, err := NewGenerator(src).Complete(context.Background(), "how do i reset", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Okta password reset", got[0])
	assert.Len(t, got, 3)
}

func TestSeedQuestions_Unique(t *testing.T) {
	qs := SeedQuestions()
	seen := map[string]bool{}
	for _, q := range qs {
		assert.False(t, seen[q], q)
		seen[q] = true
	}
	assert.Contains(t, qs, "Where are detection rules stored?")
}
