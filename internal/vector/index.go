// Package vector provides the vector index capability: a filtered in-memory index
// and a Qdrant REST index, selected through NewVectorIndex.
package vector

import (
	"context"

	"github.com/hyperjump/exasperation/internal/models"
)

// VectorIndex stores chunk vectors with metadata and answers filtered nearest-neighbour queries.
// Only chunks matching filters may be returned from Search.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, filters *models.FilterSet, k int) ([]*Hit, error)
	Upsert(ctx context.Context, chunks []*models.Chunk) error
	Remove(ctx context.Context, ids []string) error
	Size() int
	Type() string
	Close() error
}

// Hit is a single search result. Score is cosine similarity for normalized vectors.
type Hit struct {
	Chunk *models.Chunk
	Score float64
}
