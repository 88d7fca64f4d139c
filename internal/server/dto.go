package server

import (
	"strings"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/models"
)

type searchFilters struct {
	DocumentTypes []string `json:"document_types" validate:"omitempty,max=20,dive,required,max=64"`
	Vendors       []string `json:"vendors" validate:"omitempty,max=20,dive,required,max=64"`
	Products      []string `json:"products" validate:"omitempty,max=50,dive,required,max=64"`
	CreatedAfter  string   `json:"created_after" validate:"omitempty,max=32"`
	CreatedBefore string   `json:"created_before" validate:"omitempty,max=32"`
}

type searchOptions struct {
	MaxResults      int      `json:"max_results" validate:"gte=0"`
	IncludeMetadata *bool    `json:"include_metadata"`
	Rerank          *bool    `json:"rerank"`
	Threshold       *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
}

type searchRequest struct {
	Query     string         `json:"query" validate:"required,max=2000"`
	Filters   *searchFilters `json:"filters"`
	Options   *searchOptions `json:"options"`
	RequestID string         `json:"request_id" validate:"omitempty,max=128"`
}

// toQuery converts the request body. A bare created_before date includes that whole day.
func (r *searchRequest) toQuery() (*models.Query, error) {
	q := &models.Query{Text: r.Query, RequestID: r.RequestID}
	if f := r.Filters; f != nil {
		q.Filters.DocumentTypes = f.DocumentTypes
		q.Filters.Vendors = f.Vendors
		q.Filters.Products = f.Products
		if f.CreatedAfter != "" {
			t, err := models.ParseDate(f.CreatedAfter)
			if err != nil {
				return nil, apperrors.InvalidInput("created_after: %v", err).WithDetail("created_after", f.CreatedAfter)
			}
			q.Filters.CreatedAfter = &t
		}
		if f.CreatedBefore != "" {
			t, err := models.ParseDate(f.CreatedBefore)
			if err != nil {
				return nil, apperrors.InvalidInput("created_before: %v", err).WithDetail("created_before", f.CreatedBefore)
			}
			if !strings.Contains(f.CreatedBefore, "T") {
				t = models.EndOfDay(t)
			}
			q.Filters.CreatedBefore = &t
		}
	}
	if o := r.Options; o != nil {
		q.Options = models.Options{
			MaxResults:      o.MaxResults,
			Rerank:          o.Rerank,
			ScoreThreshold:  o.Threshold,
			IncludeMetadata: o.IncludeMetadata,
		}
	}
	return q, nil
}

type suggestionsResponse struct {
	Suggestions []string       `json:"suggestions"`
	Metadata    map[string]any `json:"metadata"`
}

type feedbackRequest struct {
	RequestID              string   `json:"request_id" validate:"required,max=128"`
	Rating                 string   `json:"rating" validate:"required,oneof=positive negative"`
	Comments               string   `json:"comments" validate:"max=2000"`
	SelectedSources        []string `json:"selected_sources" validate:"omitempty,max=100,dive,max=256"`
	UserQueryReformulation string   `json:"user_query_reformulation" validate:"max=2000"`
}

type feedbackResponse struct {
	Status     string `json:"status"`
	FeedbackID string `json:"feedback_id"`
	Message    string `json:"message"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}
