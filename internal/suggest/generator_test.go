package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/exasperation/internal/keyword"
	"github.com/hyperjump/exasperation/internal/models"
)

type fakeSource struct {
	related  []keyword.Phrase
	complete []keyword.Phrase
	err      error
}

func (f *fakeSource) Related(ctx context.Context, text string, limit int) ([]keyword.Phrase, error) {
	return f.related, f.err
}

func (f *fakeSource) Complete(ctx context.Context, partial string, limit int) ([]keyword.Phrase, error) {
	return f.complete, f.err
}

func titled(titles ...string) []*models.Candidate {
	out := make([]*models.Candidate, len(titles))
	for i, title := range titles {
		out[i] = &models.Candidate{Chunk: &models.Chunk{ID: title, Title: title}}
	}
	return out
}

func TestSuggest_MergeOrder(t *testing.T) {
	src := &fakeSource{related: []keyword.Phrase{
		{Text: "How does the password reset detection rule work?", Kind: keyword.KindQuestion},
		{Text: "Okta password reset", Kind: keyword.KindTitle},
	}}
	g := NewGenerator(src)

	got, err := g.Suggest(context.Background(), "password reset", titled("Okta password reset", "Azure AD reset"), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"How does the password reset detection rule work?",
		"Tell me more about Okta password reset",
		"Tell me more about Azure AD reset",
		"How do I configure SAML authentication?",
	}, got)
}

func TestSuggest_ExcludesQuery(t *testing.T) {
	src := &fakeSource{related: []keyword.Phrase{{Text: "How do I create a custom parser?", Kind: keyword.KindQuestion}}}
	got, err := NewGenerator(src).Suggest(context.Background(), "how do i create a custom parser", nil, 3)
	require.NoError(t, err)
	assert.NotContains(t, got, "How do I create a custom parser?")
	assert.Equal(t, []string{
		"What is the parser validation process?",
		"How do I troubleshoot a parser that isn't working?",
		"What are the best practices for parser optimization?",
	}, got)
}

func TestSuggest_WithoutSourceOrCandidates(t *testing.T) {
	got, err := NewGenerator(nil).Suggest(context.Background(), "tell me something", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"How do I configure SAML authentication?",
		"How do I create a custom detection rule?",
		"How do I add a new data source?",
	}, got)
}

func TestSuggest_SourceError(t *testing.T) {
	_, err := NewGenerator(&fakeSource{err: errors.New("index closed")}).Suggest(context.Background(), "q", nil, 3)
	assert.Error(t, err)
}

func TestCategoryFollowups(t *testing.T) {
	tests := []struct {
		query string
		first string
	}{
		{"configure SSO for okta", "How do I configure SAML authentication?"},
		{"new correlation rule", "How do I create a custom detection rule?"},
		{"ingest cloudtrail", "How do I add a new data source?"},
		{"extract user name", "How do I create a custom parser?"},
		{"lateral movement", "What are the security features in Exabeam?"},
	}
	for _, tt := range tests {
		got := CategoryFollowups(tt.query)
		require.NotEmpty(t, got, tt.query)
		assert.Equal(t, tt.first, got[0], tt.query)
	}
}

func TestSuggest_WithCorpus(t *testing.T) {
	corpus, err := keyword.NewCorpus("")
	require.NoError(t, err)
	defer corpus.Close()
	require.NoError(t, corpus.Seed(context.Background(), SeedQuestions(), keyword.KindQuestion))

	g := NewGenerator(corpus)
	first, err := g.Suggest(context.Background(), "password reset", nil, 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.Contains(t, first, "How does the password reset detection rule work?")

	second, err := g.Suggest(context.Background(), "password reset", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
