package query

import (
	"strings"

	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/pkg/utils"
)

// normalize returns a copy of q with collapsed text and trimmed, lowercased,
// de-duplicated filter values. Empty values are dropped.
func normalize(q *models.Query) *models.Query {
	out := *q
	out.Text = utils.CollapseWhitespace(q.Text)
	out.Filters.DocumentTypes = normalizeValues(q.Filters.DocumentTypes)
	out.Filters.Vendors = normalizeValues(q.Filters.Vendors)
	out.Filters.Products = normalizeValues(q.Filters.Products)
	return &out
}

func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validate rejects q before any capability is called.
func (e *Engine) validate(q *models.Query) error {
	return q.Validate(e.cfg.Catalog)
}
