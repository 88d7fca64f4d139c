// Package suggest produces follow-up questions for an answered query and
// completions for a partially typed one.
package suggest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/keyword"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/resilience"
	"github.com/hyperjump/exasperation/pkg/utils"
)

const (
	defaultSuggestLimit  = 3
	defaultCompleteLimit = 5
	titleFollowup        = "Tell me more about "
)

// PhraseSource looks up indexed phrases. *keyword.Corpus implements it.
type PhraseSource interface {
	Related(ctx context.Context, text string, limit int) ([]keyword.Phrase, error)
	Complete(ctx context.Context, partial string, limit int) ([]keyword.Phrase, error)
}

// Generator builds suggestions from a phrase source plus static tables.
// A nil source leaves only the static tables.
type Generator struct {
	source PhraseSource
	policy resilience.Policy
	logger *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithPolicy bounds phrase source lookups.
func WithPolicy(p resilience.Policy) Option {
	return func(g *Generator) { g.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = utils.OrNop(l) }
}

// NewGenerator creates a generator.
func NewGenerator(source PhraseSource, opts ...Option) *Generator {
	g := &Generator{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Suggest returns up to limit follow-up queries: related corpus phrases first, then
// questions about the candidates' titles, then category follow-ups for the query.
// The query itself is never suggested.
func (g *Generator) Suggest(ctx context.Context, query string, candidates []*models.Candidate, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	var merged []string

	if g.source != nil {
		related, err := resilience.Do(ctx, g.policy, func(ctx context.Context) ([]keyword.Phrase, error) {
			return g.source.Related(ctx, query, limit*2+1)
		})
		if err != nil {
			return nil, err
		}
		for _, p := range related {
			if p.Kind == keyword.KindTitle {
				merged = append(merged, titleFollowup+p.Text)
			} else {
				merged = append(merged, p.Text)
			}
		}
	}

	for _, c := range candidates {
		if c != nil && c.Chunk != nil && c.Chunk.Title != "" {
			merged = append(merged, titleFollowup+c.Chunk.Title)
		}
	}

	merged = append(merged, CategoryFollowups(query)...)
	return dedupe(merged, query, limit), nil
}

// CategoryFollowups returns the follow-ups of the first category whose keywords appear
// in query, or one question from each of the first three categories when none match.
func CategoryFollowups(query string) []string {
	lower := strings.ToLower(query)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.followups
			}
		}
	}
	return []string{categories[0].followups[0], categories[1].followups[0], categories[2].followups[0]}
}

// dedupe drops blanks, case-insensitive duplicates and entries equal to exclude,
// then caps the result at limit (0 means no cap).
func dedupe(items []string, exclude string, limit int) []string {
	seen := make(map[string]bool, len(items)+1)
	if key := normalizeKey(exclude); key != "" {
		seen[key] = true
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		key := normalizeKey(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func normalizeKey(s string) string {
	s = strings.ToLower(utils.CollapseWhitespace(s))
	return strings.TrimRight(s, "?.! ")
}
