package models

import (
	"time"

	"github.com/hyperjump/exasperation/internal/apperrors"
)

// Candidate is a chunk scored for one query.
type Candidate struct {
	Chunk       *Chunk
	VectorScore float64
	RerankScore *float64
}

// Score is the ordering score: the rerank score when present, else vector similarity.
func (c *Candidate) Score() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.VectorScore
}

// Reranked reports whether a reranker scored this candidate.
func (c *Candidate) Reranked() bool {
	return c.RerankScore != nil
}

// ContextEntry is a candidate with its citation index (1-based).
type ContextEntry struct {
	Index     int
	Candidate *Candidate
}

// Budget bounds a context window. Zero values leave a dimension unbounded.
type Budget struct {
	MaxChars   int
	MaxEntries int
}

// ContextWindow is the ordered, citation-indexed context given to the model.
type ContextWindow struct {
	Entries    []ContextEntry
	TotalChars int
	Budget     Budget
}

// Len returns the number of entries.
func (w *ContextWindow) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Entries)
}

// Answer is the synthesized text and the citation indices it references.
type Answer struct {
	Text             string
	Citations        []int
	Model            string
	PromptType       string
	PromptChars      int
	CompletionChars  int
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// SourceMetadata is the per-source metadata block of a response.
type SourceMetadata struct {
	DocumentType string    `json:"document_type"`
	Vendor       string    `json:"vendor"`
	Product      string    `json:"product"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Source is one retrieved chunk as returned to the caller.
type Source struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	URL            string          `json:"url"`
	ChunkID        string          `json:"chunk_id"`
	Content        string          `json:"content"`
	RelevanceScore float64         `json:"relevance_score"`
	CitationIndex  int             `json:"citation_index,omitempty"`
	Metadata       *SourceMetadata `json:"metadata,omitempty"`
}

// Warning describes a degradation absorbed by the request.
type Warning struct {
	Code      apperrors.ErrorType `json:"code"`
	Component string              `json:"component"`
	Message   string              `json:"message"`
}

// Status is the outcome of a request that did not fail.
type Status string

const (
	StatusComplete           Status = "complete"
	StatusNoMatches          Status = "no_matches"
	StatusPartialDegradation Status = "partial_degradation"
)

// Metadata is the processing record of a response.
type Metadata struct {
	ProcessingTimeMs    int64     `json:"processing_time_ms"`
	FilterCount         int       `json:"filter_count"`
	CandidatesRetrieved int       `json:"candidates_retrieved"`
	TotalMatches        int       `json:"total_matches"`
	ThresholdApplied    float64   `json:"threshold_applied"`
	Reranked            bool      `json:"reranked"`
	RerankDegraded      bool      `json:"rerank_degraded"`
	SynthesisDegraded   bool      `json:"synthesis_degraded"`
	SuggestionsDegraded bool      `json:"suggestions_degraded"`
	Model               string    `json:"model,omitempty"`
	PromptType          string    `json:"prompt_type,omitempty"`
	Warnings            []Warning `json:"warnings,omitempty"`
}

// Response is the result of one handled query.
type Response struct {
	RequestID        string    `json:"request_id"`
	Query            string    `json:"query"`
	Answer           string    `json:"answer"`
	Citations        []int     `json:"citations"`
	Sources          []*Source `json:"sources"`
	SuggestedQueries []string  `json:"suggested_queries"`
	Status           Status    `json:"status"`
	Metadata         Metadata  `json:"metadata"`
}

// NewSource converts a candidate into a response source.
func NewSource(c *Candidate, withMetadata bool) *Source {
	ch := c.Chunk
	s := &Source{
		ID:             ch.DocumentID,
		Title:          ch.Title,
		URL:            ch.URL,
		ChunkID:        ch.ID,
		Content:        ch.Content,
		RelevanceScore: c.Score(),
	}
	if withMetadata {
		m := SourceMetadata(ch.Metadata)
		s.Metadata = &m
	}
	return s
}
