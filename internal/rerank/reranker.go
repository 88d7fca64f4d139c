// Package rerank refines a vector-search ordering with a second relevance pass.
package rerank

import "context"

// Document is one candidate sent for reranking.
type Document struct {
	ID           string
	Text         string
	DocumentType string
}

// Score is the relevance of one document, normally within [0,1].
type Score struct {
	ID    string
	Score float64
}

// Reranker scores documents against a query. Results may come back in any order;
// callers match them to documents by ID. On error, callers keep the original scores.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document) ([]Score, error)
	Name() string
}
