// Package query is the request/response facade over retrieval, context assembly,
// answer synthesis and suggestions.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/assembler"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/retrieval"
	"github.com/hyperjump/exasperation/pkg/utils"
)

// Retriever is the retrieval stage. *retrieval.Engine implements it.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// Synthesizer is the answer stage. *synthesis.Synthesizer implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, w *models.ContextWindow) (*models.Answer, error)
}

// Suggester is the follow-up stage. *suggest.Generator implements it.
type Suggester interface {
	Suggest(ctx context.Context, query string, candidates []*models.Candidate, limit int) ([]string, error)
}

// Config holds request defaults and limits.
type Config struct {
	Defaults        models.Defaults
	Catalog         *models.Catalog
	Budget          models.Budget
	SuggestionLimit int
}

// Engine handles queries end to end.
type Engine struct {
	retriever   Retriever
	synthesizer Synthesizer
	suggester   Suggester
	cfg         Config
	logger      *zap.Logger
	newID       func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// WithIDGenerator replaces the request ID generator.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) {
		if f != nil {
			e.newID = f
		}
	}
}

// NewEngine creates a query engine. The suggester may be nil.
func NewEngine(r Retriever, s Synthesizer, g Suggester, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		retriever:   r,
		synthesizer: s,
		suggester:   g,
		cfg:         cfg,
		logger:      zap.NewNop(),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle validates q, retrieves candidates, assembles context and runs synthesis and
// suggestions concurrently. Reranker, synthesis and suggestion failures degrade the
// response; any other failure is returned as a classified error.
func (e *Engine) Handle(ctx context.Context, q *models.Query) (*models.Response, error) {
	start := time.Now()
	if q == nil {
		return nil, apperrors.InvalidInput("query is required")
	}
	q = normalize(q)
	requestID := q.RequestID
	if requestID == "" {
		requestID = e.newID()
	}
	log := e.logger.With(zap.String("request_id", requestID))

	log.Debug("validating")
	if err := e.validate(q); err != nil {
		log.Debug("failed", zap.String("stage", "validating"), zap.Error(err))
		return nil, err
	}
	opts := q.Resolve(e.cfg.Defaults)

	resp := &models.Response{
		RequestID:        requestID,
		Query:            q.Text,
		Citations:        []int{},
		Sources:          []*models.Source{},
		SuggestedQueries: []string{},
		Status:           models.StatusComplete,
		Metadata: models.Metadata{
			FilterCount:      q.Filters.Count(),
			ThresholdApplied: opts.ScoreThreshold,
		},
	}

	log.Debug("retrieving", zap.Int("max_results", opts.MaxResults), zap.Int("filters", resp.Metadata.FilterCount))
	result, err := e.retriever.Retrieve(ctx, retrieval.Request{
		Text:       q.Text,
		Filters:    &q.Filters,
		MaxResults: opts.MaxResults,
		Rerank:     opts.Rerank,
		Threshold:  opts.ScoreThreshold,
	})
	if err != nil {
		log.Warn("failed", zap.String("stage", "retrieving"), zap.Error(err))
		return nil, err
	}
	resp.Metadata.CandidatesRetrieved = result.Retrieved
	resp.Metadata.TotalMatches = result.TotalMatches
	resp.Metadata.Reranked = result.Reranked
	if result.RerankErr != nil {
		resp.Metadata.RerankDegraded = true
		e.degrade(resp, models.Warning{
			Code:      apperrors.ErrorTypePartialDegradation,
			Component: "reranker",
			Message:   "reranking failed; results are ordered by vector similarity",
		})
	}

	if len(result.Candidates) == 0 {
		resp.Status = models.StatusNoMatches
		resp.SuggestedQueries = e.suggest(ctx, log, resp, q.Text, nil)
		e.finish(log, resp, start)
		return resp, nil
	}

	log.Debug("assembling", zap.Int("candidates", len(result.Candidates)))
	window := assembler.Assemble(result.Candidates, e.cfg.Budget)

	var (
		wg          sync.WaitGroup
		answer      *models.Answer
		synthErr    error
		suggestions []string
	)
	log.Debug("synthesizing", zap.Int("context_entries", window.Len()), zap.Int("context_chars", window.TotalChars))
	log.Debug("suggesting")
	wg.Add(2)
	go func() {
		defer wg.Done()
		answer, synthErr = e.synthesizer.Synthesize(ctx, q.Text, window)
	}()
	go func() {
		defer wg.Done()
		suggestions = e.suggest(ctx, log, nil, q.Text, result.Candidates)
	}()
	wg.Wait()

	if suggestions == nil && e.suggester != nil {
		e.suggestionsDegraded(resp)
	} else if suggestions != nil {
		resp.SuggestedQueries = suggestions
	}

	for i, c := range result.Candidates {
		src := models.NewSource(c, opts.IncludeMetadata)
		if i < window.Len() {
			src.CitationIndex = i + 1
		}
		resp.Sources = append(resp.Sources, src)
	}

	if synthErr != nil {
		if ctx.Err() != nil {
			log.Debug("failed", zap.String("stage", "synthesizing"), zap.Error(ctx.Err()))
			return nil, ctx.Err()
		}
		log.Warn("synthesis degraded to sources-only response", zap.Error(synthErr))
		resp.Metadata.SynthesisDegraded = true
		e.degrade(resp, models.Warning{
			Code:      apperrors.ErrorTypeSynthesisUnavailable,
			Component: "synthesizer",
			Message:   "answer generation failed; returning sources only",
		})
	} else {
		resp.Answer = answer.Text
		resp.Citations = citationsWithin(answer.Citations, len(resp.Sources))
		resp.Metadata.Model = answer.Model
		resp.Metadata.PromptType = answer.PromptType
	}

	e.finish(log, resp, start)
	return resp, nil
}

// suggest runs the suggester and returns nil on failure. When resp is non-nil the
// failure is recorded on it directly.
func (e *Engine) suggest(ctx context.Context, log *zap.Logger, resp *models.Response, text string, cands []*models.Candidate) []string {
	if e.suggester == nil {
		return nil
	}
	out, err := e.suggester.Suggest(ctx, text, cands, e.cfg.SuggestionLimit)
	if err != nil {
		log.Warn("suggestions degraded", zap.Error(err))
		if resp != nil {
			e.suggestionsDegraded(resp)
		}
		return nil
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (e *Engine) suggestionsDegraded(resp *models.Response) {
	resp.Metadata.SuggestionsDegraded = true
	e.degrade(resp, models.Warning{
		Code:      apperrors.ErrorTypePartialDegradation,
		Component: "suggestions",
		Message:   "follow-up suggestions are unavailable",
	})
}

// degrade records w. A no_matches status is kept; any other becomes partial_degradation.
func (e *Engine) degrade(resp *models.Response, w models.Warning) {
	resp.Metadata.Warnings = append(resp.Metadata.Warnings, w)
	if resp.Status != models.StatusNoMatches {
		resp.Status = models.StatusPartialDegradation
	}
}

func (e *Engine) finish(log *zap.Logger, resp *models.Response, start time.Time) {
	resp.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()
	log.Debug("complete")
	log.Info("query handled",
		zap.String("status", string(resp.Status)),
		zap.Int64("latency_ms", resp.Metadata.ProcessingTimeMs),
		zap.Int("sources", len(resp.Sources)),
		zap.Int("citations", len(resp.Citations)),
		zap.Int("total_matches", resp.Metadata.TotalMatches),
		zap.Int("warnings", len(resp.Metadata.Warnings)))
}

// citationsWithin keeps indices that resolve to a source.
func citationsWithin(cites []int, n int) []int {
	out := make([]int, 0, len(cites))
	for _, c := range cites {
		if c >= 1 && c <= n {
			out = append(out, c)
		}
	}
	return out
}
