// Package retrieval turns a query into a ranked, filtered list of candidate chunks.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/embedding"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/rerank"
	"github.com/hyperjump/exasperation/internal/resilience"
	"github.com/hyperjump/exasperation/internal/vector"
	"github.com/hyperjump/exasperation/pkg/utils"
)

const defaultMultiplier = 4

// Request is one retrieval call with resolved options.
type Request struct {
	Text       string
	Filters    *models.FilterSet
	MaxResults int
	Rerank     bool
	Threshold  float64
}

// Result is the ranked candidate list plus counters for response metadata.
type Result struct {
	Candidates   []*models.Candidate
	Retrieved    int // hits surviving the filters
	TotalMatches int // candidates at or above the threshold, before truncation
	Reranked     bool
	// RerankErr is set when reranking was requested but degraded to vector order.
	RerankErr error
}

// Policies are the per-capability resilience policies.
type Policies struct {
	Embed  resilience.Policy
	Search resilience.Policy
	Rerank resilience.Policy
}

// Engine runs embed, search, rerank, threshold and truncate.
type Engine struct {
	embedder   embedding.Embedder
	index      vector.VectorIndex
	reranker   rerank.Reranker
	processor  *Processor
	multiplier int
	policies   Policies
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithReranker sets the reranker. A nil reranker disables reranking.
func WithReranker(r rerank.Reranker) Option {
	return func(e *Engine) { e.reranker = r }
}

// WithPolicies sets the resilience policies.
func WithPolicies(p Policies) Option {
	return func(e *Engine) { e.policies = p }
}

// WithCandidateMultiplier sets how many candidates are fetched per requested result.
func WithCandidateMultiplier(m int) Option {
	return func(e *Engine) {
		if m > 0 {
			e.multiplier = m
		}
	}
}

// WithAcronymExpansion toggles acronym and product alias expansion of the embedded text.
func WithAcronymExpansion(enabled bool) Option {
	return func(e *Engine) { e.processor = NewProcessor(enabled) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// NewEngine creates a retrieval engine.
func NewEngine(embedder embedding.Embedder, index vector.VectorIndex, opts ...Option) *Engine {
	e := &Engine{
		embedder:   embedder,
		index:      index,
		processor:  NewProcessor(true),
		multiplier: defaultMultiplier,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns at most req.MaxResults candidates satisfying req.Filters with score >= req.Threshold.
// Embedding and search failures are returned as EmbeddingUnavailable and RetrievalUnavailable.
// A reranker failure is not an error; it is reported in Result.RerankErr.
func (e *Engine) Retrieve(ctx context.Context, req Request) (*Result, error) {
	text := Normalize(req.Text)
	if text == "" {
		return nil, apperrors.InvalidInput("query text is empty")
	}
	if req.MaxResults <= 0 {
		return nil, apperrors.InvalidInput("max_results must be positive")
	}

	embedText := e.processor.ForEmbedding(text)
	vec, err := resilience.Do(ctx, e.policies.Embed, func(ctx context.Context) ([]float32, error) {
		return e.embedder.Embed(ctx, embedText)
	})
	if err != nil {
		return nil, apperrors.EmbeddingUnavailable(err)
	}

	k := CandidateCount(req.MaxResults, e.multiplier)
	start := time.Now()
	hits, err := resilience.Do(ctx, e.policies.Search, func(ctx context.Context) ([]*vector.Hit, error) {
		return e.index.Search(ctx, vec, req.Filters, k)
	})
	if err != nil {
		return nil, apperrors.RetrievalUnavailable(err)
	}
	e.logger.Debug("vector search",
		zap.Int("k", k),
		zap.Int("hits", len(hits)),
		zap.Duration("took", time.Since(start)))

	candidates := toCandidates(hits, req.Filters)
	result := &Result{Retrieved: len(candidates)}

	if req.Rerank && e.reranker != nil && len(candidates) > 0 {
		if err := e.rerank(ctx, text, candidates); err != nil {
			e.logger.Warn("rerank degraded, keeping vector order",
				zap.String("reranker", e.reranker.Name()),
				zap.Error(err))
			for _, c := range candidates {
				c.RerankScore = nil
			}
			result.RerankErr = err
		} else {
			result.Reranked = true
		}
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Score() >= req.Threshold {
			kept = append(kept, c)
		}
	}
	SortCandidates(kept)
	result.TotalMatches = len(kept)
	if len(kept) > req.MaxResults {
		kept = kept[:req.MaxResults]
	}
	result.Candidates = kept
	return result, nil
}

var errIncompleteRerank = errors.New("reranker response is missing candidates")

func (e *Engine) rerank(ctx context.Context, query string, candidates []*models.Candidate) error {
	docs := make([]rerank.Document, len(candidates))
	for i, c := range candidates {
		docs[i] = rerank.Document{
			ID:           c.Chunk.ID,
			Text:         c.Chunk.Content,
			DocumentType: c.Chunk.Metadata.DocumentType,
		}
	}
	scores, err := resilience.Do(ctx, e.policies.Rerank, func(ctx context.Context) ([]rerank.Score, error) {
		return e.reranker.Rerank(ctx, query, docs)
	})
	if err != nil {
		return err
	}

	byID := make(map[string]float64, len(scores))
	for _, s := range scores {
		if _, seen := byID[s.ID]; !seen {
			byID[s.ID] = s.Score
		}
	}
	missing := 0
	for _, c := range candidates {
		if _, ok := byID[c.Chunk.ID]; !ok {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%w: %d of %d", errIncompleteRerank, missing, len(candidates))
	}
	for _, c := range candidates {
		s := utils.Clamp01(byID[c.Chunk.ID])
		c.RerankScore = &s
	}
	return nil
}

// CandidateCount is the number of hits fetched for maxResults: maxResults × multiplier
// clamped to [3×, 5×] maxResults.
func CandidateCount(maxResults, multiplier int) int {
	if multiplier < 3 {
		multiplier = 3
	}
	if multiplier > 5 {
		multiplier = 5
	}
	return maxResults * multiplier
}

func toCandidates(hits []*vector.Hit, filters *models.FilterSet) []*models.Candidate {
	seen := make(map[string]struct{}, len(hits))
	out := make([]*models.Candidate, 0, len(hits))
	for _, h := range hits {
		if h == nil || h.Chunk == nil {
			continue
		}
		if _, dup := seen[h.Chunk.ID]; dup {
			continue
		}
		if !filters.Matches(h.Chunk.Metadata) {
			continue
		}
		seen[h.Chunk.ID] = struct{}{}
		out = append(out, &models.Candidate{
			Chunk:       h.Chunk,
			VectorScore: utils.Clamp01(h.Score),
		})
	}
	return out
}

// SortCandidates orders by score desc, then most recently updated, then chunk ID.
func SortCandidates(cs []*models.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		au, bu := a.Chunk.Metadata.UpdatedAt, b.Chunk.Metadata.UpdatedAt
		if !au.Equal(bu) {
			return au.After(bu)
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}
