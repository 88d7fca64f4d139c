package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/exasperation/internal/apperrors"
)

// Options are per-request overrides. Nil pointers mean "use the configured default".
type Options struct {
	MaxResults      int      `json:"max_results,omitempty"`
	Rerank          *bool    `json:"rerank,omitempty"`
	ScoreThreshold  *float64 `json:"score_threshold,omitempty"`
	IncludeMetadata *bool    `json:"include_metadata,omitempty"`
}

// Query is a single question with its filters and options.
type Query struct {
	Text      string    `json:"query"`
	Filters   FilterSet `json:"filters"`
	Options   Options   `json:"options"`
	RequestID string    `json:"request_id,omitempty"`
}

// Defaults are the option values applied when a query leaves them unset.
type Defaults struct {
	MaxResults      int
	MaxResultsLimit int
	Rerank          bool
	ScoreThreshold  float64
	IncludeMetadata bool
}

// Resolved is Options with every default applied.
type Resolved struct {
	MaxResults      int
	Rerank          bool
	ScoreThreshold  float64
	IncludeMetadata bool
}

// Validate checks q against the catalog. It never mutates q.
func (q *Query) Validate(catalog *Catalog) error {
	if strings.TrimSpace(q.Text) == "" {
		return apperrors.InvalidInput("query text is empty")
	}
	if q.Options.MaxResults < 0 {
		return apperrors.InvalidInput("max_results must be >= 0, got %d", q.Options.MaxResults)
	}
	if t := q.Options.ScoreThreshold; t != nil && (*t < 0 || *t > 1) {
		return apperrors.InvalidInput("score_threshold must be within [0,1], got %v", *t)
	}
	f := q.Filters
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return apperrors.InvalidInput("created_after %s is later than created_before %s",
			f.CreatedAfter.Format("2006-01-02"), f.CreatedBefore.Format("2006-01-02"))
	}
	if catalog == nil {
		return nil
	}
	unknown := catalog.UnknownValues(f)
	if len(unknown) == 0 {
		return nil
	}
	dims := make([]string, 0, len(unknown))
	for dim := range unknown {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	parts := make([]string, 0, len(dims))
	for _, dim := range dims {
		parts = append(parts, fmt.Sprintf("%s=%s", dim, strings.Join(unknown[dim], ",")))
	}
	err := apperrors.InvalidInput("unknown filter values: %s", strings.Join(parts, "; "))
	for _, dim := range dims {
		err = err.WithDetail(dim, unknown[dim])
	}
	return err
}

// Resolve applies d to the unset options of q. MaxResults is clamped to d.MaxResultsLimit.
func (q *Query) Resolve(d Defaults) Resolved {
	r := Resolved{
		MaxResults:      q.Options.MaxResults,
		Rerank:          d.Rerank,
		ScoreThreshold:  d.ScoreThreshold,
		IncludeMetadata: d.IncludeMetadata,
	}
	if r.MaxResults == 0 {
		r.MaxResults = d.MaxResults
	}
	if d.MaxResultsLimit > 0 && r.MaxResults > d.MaxResultsLimit {
		r.MaxResults = d.MaxResultsLimit
	}
	if q.Options.Rerank != nil {
		r.Rerank = *q.Options.Rerank
	}
	if q.Options.ScoreThreshold != nil {
		r.ScoreThreshold = *q.Options.ScoreThreshold
	}
	if q.Options.IncludeMetadata != nil {
		r.IncludeMetadata = *q.Options.IncludeMetadata
	}
	return r
}
