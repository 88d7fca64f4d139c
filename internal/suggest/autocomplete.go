package suggest

import (
	"context"
	"strings"

	"github.com/hyperjump/exasperation/internal/keyword"
	"github.com/hyperjump/exasperation/internal/resilience"
)

// Complete returns up to limit completions of partial: corpus prefix matches, then the
// static table for the first word (prefix matches before substring matches), then defaults.
func (g *Generator) Complete(ctx context.Context, partial string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultCompleteLimit
	}
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return dedupe(defaultCompletions, "", limit), nil
	}

	var merged []string
	if g.source != nil {
		phrases, err := resilience.Do(ctx, g.policy, func(ctx context.Context) ([]keyword.Phrase, error) {
			return g.source.Complete(ctx, partial, limit)
		})
		if err != nil {
			return nil, err
		}
		for _, p := range phrases {
			merged = append(merged, p.Text)
		}
	}

	merged = append(merged, staticCompletions(partial)...)
	merged = append(merged, defaultCompletions...)
	return dedupe(merged, "", limit), nil
}

func staticCompletions(partial string) []string {
	lower := strings.ToLower(partial)
	first := strings.Fields(lower)[0]
	table, ok := prefixCompletions[first]
	if !ok {
		table = defaultCompletions
	}
	var prefixed, contained []string
	for _, s := range table {
		ls := strings.ToLower(s)
		switch {
		case strings.HasPrefix(ls, lower):
			prefixed = append(prefixed, s)
		case strings.Contains(ls, lower):
			contained = append(contained, s)
		}
	}
	return append(prefixed, contained...)
}
