package query

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/assembler"
	"github.com/hyperjump/exasperation/internal/keyword"
	"github.com/hyperjump/exasperation/internal/llm"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/rerank"
	"github.com/hyperjump/exasperation/internal/retrieval"
	"github.com/hyperjump/exasperation/internal/suggest"
	"github.com/hyperjump/exasperation/internal/synthesis"
	"github.com/hyperjump/exasperation/internal/vector"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{1, 0, 0}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := c.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
func (c *countingEmbedder) Dimensions() int { return 3 }
func (c *countingEmbedder) Close() error    { return nil }

// scoredIndex returns preset similarities and honours filters like a real index.
type scoredIndex struct {
	hits  []*vector.Hit
	calls atomic.Int32
}

func (s *scoredIndex) Search(ctx context.Context, q []float32, filters *models.FilterSet, k int) ([]*vector.Hit, error) {
	s.calls.Add(1)
	var out []*vector.Hit
	for _, h := range s.hits {
		if filters.Matches(h.Chunk.Metadata) {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
func (s *scoredIndex) Upsert(ctx context.Context, chunks []*models.Chunk) error { return nil }
func (s *scoredIndex) Remove(ctx context.Context, ids []string) error          { return nil }
func (s *scoredIndex) Size() int                                               { return len(s.hits) }
func (s *scoredIndex) Type() string                                            { return "scored" }
func (s *scoredIndex) Close() error                                            { return nil }

type countingReranker struct {
	calls atomic.Int32
	err   error
}

func (c *countingReranker) Name() string { return "counting" }
func (c *countingReranker) Rerank(ctx context.Context, q string, docs []rerank.Document) ([]rerank.Score, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	out := make([]rerank.Score, len(docs))
	for i, d := range docs {
		// Reverse the vector order deterministically.
		out[i] = rerank.Score{ID: d.ID, Score: 0.75 + 0.01*float64(i)}
	}
	return out, nil
}

type countingModel struct {
	calls atomic.Int32
	err   error
	mock  *llm.MockModel
}

func (c *countingModel) Name() string { return "counting" }
func (c *countingModel) Generate(ctx context.Context, p llm.Prompt, o llm.Options) (*llm.Generation, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.mock.Generate(ctx, p, o)
}

type failingSuggester struct{}

func (failingSuggester) Suggest(ctx context.Context, q string, c []*models.Candidate, limit int) ([]string, error) {
	return nil, errors.New("phrase index closed")
}

var updated = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func chunk(id, title, docType, vendor, product string) *models.Chunk {
	return &models.Chunk{
		ID:         id,
		DocumentID: "doc-" + id,
		Title:      title,
		URL:        "https://docs.example.com/" + id,
		Content:    title + ". Step-by-step guidance for " + vendor + ".",
		Metadata: models.ChunkMetadata{
			DocumentType: docType,
			Vendor:       vendor,
			Product:      product,
			CreatedAt:    updated.AddDate(0, -6, 0),
			UpdatedAt:    updated,
		},
	}
}

func corpusHits() []*vector.Hit {
	return []*vector.Hit{
		{Chunk: chunk("ms-uc", "Password reset abuse in Azure AD", "use_case", "microsoft", "azure_ad"), Score: 0.92},
		{Chunk: chunk("okta-rule", "Okta password reset detection rule", "rule", "okta", "identity_cloud"), Score: 0.88},
		{Chunk: chunk("okta-parser", "Okta system log parser", "parser", "okta", "identity_cloud"), Score: 0.81},
		{Chunk: chunk("ms-overview", "Azure AD overview", "overview", "microsoft", "azure_ad"), Score: 0.95},
		{Chunk: chunk("cisco-rule", "Cisco ISE password change rule", "rule", "cisco", "ise"), Score: 0.97},
		{Chunk: chunk("okta-uc-low", "Okta account lifecycle", "use_case", "okta", "identity_cloud"), Score: 0.55},
	}
}

type harness struct {
	emb    *countingEmbedder
	index  *scoredIndex
	rr     *countingReranker
	model  *countingModel
	engine *Engine
}

type harnessOption func(*harness, *[]retrieval.Option, *Suggester)

func withReranker(err error) harnessOption {
	return func(h *harness, opts *[]retrieval.Option, _ *Suggester) {
		h.rr = &countingReranker{err: err}
		*opts = append(*opts, retrieval.WithReranker(h.rr))
	}
}

func withSuggester(s Suggester) harnessOption {
	return func(_ *harness, _ *[]retrieval.Option, g *Suggester) { *g = s }
}

func newHarness(t *testing.T, hits []*vector.Hit, llmErr error, hopts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		emb:   &countingEmbedder{},
		index: &scoredIndex{hits: hits},
		rr:    &countingReranker{},
		model: &countingModel{err: llmErr, mock: llm.NewMockModel("")},
	}
	var ropts []retrieval.Option
	var sugg Suggester = suggest.NewGenerator(nil)
	for _, o := range hopts {
		o(h, &ropts, &sugg)
	}
	catalog := models.DefaultCatalog()
	h.engine = NewEngine(
		retrieval.NewEngine(h.emb, h.index, ropts...),
		synthesis.NewSynthesizer(h.model),
		sugg,
		Config{
			Defaults: models.Defaults{
				MaxResults:      10,
				MaxResultsLimit: 100,
				Rerank:          true,
				ScoreThreshold:  0.7,
				IncludeMetadata: true,
			},
			Catalog:         &catalog,
			Budget:          assembler.BudgetFromTokens(4000, 4, 0),
			SuggestionLimit: 3,
		},
		WithIDGenerator(func() string { return "req-fixed" }),
	)
	return h
}

func (h *harness) externalCalls() int32 {
	return h.emb.calls.Load() + h.index.calls.Load() + h.rr.calls.Load() + h.model.calls.Load()
}

func passwordResetQuery() *models.Query {
	threshold := 0.7
	return &models.Query{
		Text: "How do I detect password reset abuse?",
		Filters: models.FilterSet{
			DocumentTypes: []string{"use_case", "parser", "rule"},
			Vendors:       []string{"microsoft", "okta"},
		},
		Options: models.Options{ScoreThreshold: &threshold},
	}
}

func assertCitationsResolve(t *testing.T, resp *models.Response) {
	t.Helper()
	for _, c := range resp.Citations {
		require.True(t, c >= 1 && c <= len(resp.Sources), "citation %d out of range", c)
		assert.Equal(t, c, resp.Sources[c-1].CitationIndex)
	}
}

func TestHandle_PasswordResetScenario(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)
	q := passwordResetQuery()

	resp, err := h.engine.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, resp.Status)
	assert.Equal(t, "req-fixed", resp.RequestID)

	require.Len(t, resp.Sources, 3)
	assert.Equal(t, []string{"ms-uc", "okta-rule", "okta-parser"},
		[]string{resp.Sources[0].ChunkID, resp.Sources[1].ChunkID, resp.Sources[2].ChunkID})
	for _, s := range resp.Sources {
		require.NotNil(t, s.Metadata)
		assert.Contains(t, []string{"use_case", "parser", "rule"}, s.Metadata.DocumentType)
		assert.Contains(t, []string{"microsoft", "okta"}, s.Metadata.Vendor)
		assert.GreaterOrEqual(t, s.RelevanceScore, 0.7)
	}

	assert.NotEmpty(t, resp.Answer)
	assert.Equal(t, []int{1, 2}, resp.Citations)
	assertCitationsResolve(t, resp)
	assert.Len(t, resp.SuggestedQueries, 3)

	assert.Equal(t, 2, resp.Metadata.FilterCount)
	assert.Equal(t, 0.7, resp.Metadata.ThresholdApplied)
	assert.Equal(t, 4, resp.Metadata.CandidatesRetrieved)
	assert.Equal(t, 3, resp.Metadata.TotalMatches)
	assert.Equal(t, "standard", resp.Metadata.PromptType)
	assert.Empty(t, resp.Metadata.Warnings)
}

func TestHandle_MaxResultsBoundsSources(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)
	q := passwordResetQuery()
	q.Options.MaxResults = 2

	resp, err := h.engine.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2)
	assert.Equal(t, 3, resp.Metadata.TotalMatches)
	assertCitationsResolve(t, resp)
}

func TestHandle_Idempotent(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)

	first, err := h.engine.Handle(context.Background(), passwordResetQuery())
	require.NoError(t, err)
	second, err := h.engine.Handle(context.Background(), passwordResetQuery())
	require.NoError(t, err)

	first.Metadata.ProcessingTimeMs, second.Metadata.ProcessingTimeMs = 0, 0
	assert.Equal(t, first, second)
}

func TestHandle_RerankerFailure(t *testing.T) {
	h := newHarness(t, corpusHits(), nil, withReranker(errors.New("cross-encoder timeout")))

	resp, err := h.engine.Handle(context.Background(), passwordResetQuery())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartialDegradation, resp.Status)
	assert.True(t, resp.Metadata.RerankDegraded)
	assert.False(t, resp.Metadata.Reranked)
	require.Len(t, resp.Metadata.Warnings, 1)
	assert.Equal(t, apperrors.ErrorTypePartialDegradation, resp.Metadata.Warnings[0].Code)
	assert.Equal(t, "reranker", resp.Metadata.Warnings[0].Component)

	scores := make([]float64, len(resp.Sources))
	for i, s := range resp.Sources {
		scores[i] = s.RelevanceScore
	}
	assert.Equal(t, []float64{0.92, 0.88, 0.81}, scores)
	assert.NotEmpty(t, resp.Answer)
}

func TestHandle_RerankReorders(t *testing.T) {
	h := newHarness(t, corpusHits(), nil, withReranker(nil))

	resp, err := h.engine.Handle(context.Background(), passwordResetQuery())
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, resp.Status)
	assert.True(t, resp.Metadata.Reranked)
	// The low vector hit is lifted over the threshold by its rerank score.
	require.Len(t, resp.Sources, 4)
	assert.Equal(t, "okta-uc-low", resp.Sources[0].ChunkID)
	assert.InDelta(t, 0.78, resp.Sources[0].RelevanceScore, 1e-9)
}

func TestHandle_LLMFailureWithTwoCandidates(t *testing.T) {
	hits := corpusHits()[:2]
	h := newHarness(t, hits, &llm.ProviderError{Provider: "openai", Code: "server_error", StatusCode: 500, Retryable: true, Err: errors.New("upstream")})

	resp, err := h.engine.Handle(context.Background(), passwordResetQuery())
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2)
	assert.Empty(t, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, models.StatusPartialDegradation, resp.Status)
	assert.True(t, resp.Metadata.SynthesisDegraded)
	require.Len(t, resp.Metadata.Warnings, 1)
	assert.Equal(t, apperrors.ErrorTypeSynthesisUnavailable, resp.Metadata.Warnings[0].Code)
	assert.NotEmpty(t, resp.SuggestedQueries)
}

func TestHandle_EmptyQueryRejectedWithoutCalls(t *testing.T) {
	h := newHarness(t, corpusHits(), nil, withReranker(nil))

	for _, text := range []string{"", "   ", "\t\n"} {
		resp, err := h.engine.Handle(context.Background(), &models.Query{Text: text})
		assert.Nil(t, resp)
		assert.True(t, apperrors.IsInvalidInput(err))
	}
	assert.Zero(t, h.externalCalls())
}

func TestHandle_InvalidFiltersRejectedWithoutCalls(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)
	after := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	bad := 1.5

	tests := []struct {
		name string
		q    *models.Query
	}{
		{"unknown vendor", &models.Query{Text: "q", Filters: models.FilterSet{Vendors: []string{"acme"}}}},
		{"inverted dates", &models.Query{Text: "q", Filters: models.FilterSet{CreatedAfter: &after, CreatedBefore: &before}}},
		{"threshold out of range", &models.Query{Text: "q", Options: models.Options{ScoreThreshold: &bad}}},
		{"negative max results", &models.Query{Text: "q", Options: models.Options{MaxResults: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Handle(context.Background(), tt.q)
			assert.True(t, apperrors.IsInvalidInput(err))
		})
	}
	assert.Zero(t, h.externalCalls())

	_, err := h.engine.Handle(context.Background(), &models.Query{Text: "q", Filters: models.FilterSet{Vendors: []string{"acme"}}})
	assert.Equal(t, []string{"acme"}, apperrors.DetailsOf(err)["vendors"])
}

func TestHandle_FilterValuesNormalized(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)
	q := passwordResetQuery()
	q.Filters.Vendors = []string{" Okta ", "OKTA"}

	resp, err := h.engine.Handle(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, resp.Sources, 2)
	for _, s := range resp.Sources {
		assert.Equal(t, "okta", s.Metadata.Vendor)
	}
}

func TestHandle_NoMatches(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)
	threshold := 0.99

	resp, err := h.engine.Handle(context.Background(), &models.Query{Text: "what is ueba", Options: models.Options{ScoreThreshold: &threshold}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoMatches, resp.Status)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.Answer)
	assert.Zero(t, h.model.calls.Load())
	assert.Len(t, resp.SuggestedQueries, 3)
}

func TestHandle_EmbeddingUnavailable(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)
	h.emb.err = errors.New("embedding service down")

	resp, err := h.engine.Handle(context.Background(), passwordResetQuery())
	assert.Nil(t, resp)
	assert.True(t, apperrors.IsEmbeddingUnavailable(err))
	assert.Zero(t, h.model.calls.Load())
}

func TestHandle_SuggestionsFailure(t *testing.T) {
	h := newHarness(t, corpusHits(), nil, withSuggester(failingSuggester{}))

	resp, err := h.engine.Handle(context.Background(), passwordResetQuery())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartialDegradation, resp.Status)
	assert.True(t, resp.Metadata.SuggestionsDegraded)
	assert.Empty(t, resp.SuggestedQueries)
	assert.NotEmpty(t, resp.Answer)
}

func TestHandle_WithoutMetadata(t *testing.T) {
	h := newHarness(t, corpusHits(), nil)
	q := passwordResetQuery()
	off := false
	q.Options.IncludeMetadata = &off
	q.RequestID = "caller-id"

	resp, err := h.engine.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "caller-id", resp.RequestID)
	for _, s := range resp.Sources {
		assert.Nil(t, s.Metadata)
	}
}

func TestHandle_CorpusBackedSuggestions(t *testing.T) {
	corpus, err := keyword.NewCorpus("")
	require.NoError(t, err)
	defer corpus.Close()
	require.NoError(t, corpus.Seed(context.Background(), suggest.SeedQuestions(), keyword.KindQuestion))

	h := newHarness(t, corpusHits(), nil, withSuggester(suggest.NewGenerator(corpus)))
	resp, err := h.engine.Handle(context.Background(), passwordResetQuery())
	require.NoError(t, err)
	assert.Contains(t, resp.SuggestedQueries, "How does the password reset detection rule work?")
}
