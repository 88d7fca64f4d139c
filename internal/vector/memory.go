package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/exasperation/internal/models"
)

// MemoryIndex is an in-memory vector index using brute-force cosine similarity, matching
// the distance the Qdrant collection is created with.
// Filters are applied before scoring, so Search never returns a non-matching chunk.
type MemoryIndex struct {
	dimensions int
	chunks     map[string]*models.Chunk
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		chunks:     make(map[string]*models.Chunk),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Upsert adds or replaces chunks by ID. Every chunk must carry an embedding of the index dimension.
func (m *MemoryIndex) Upsert(ctx context.Context, chunks []*models.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != m.dimensions {
			return fmt.Errorf("chunk %s: vector dimension mismatch: got %d, expected %d", c.ID, len(c.Embedding), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		cp := *c
		cp.Embedding = append([]float32(nil), c.Embedding...)
		m.chunks[c.ID] = &cp
	}
	return nil
}

// Search returns up to k chunks matching filters, by descending cosine similarity.
// Equal scores are ordered by chunk ID.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, filters *models.FilterSet, k int) ([]*Hit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	hits := make([]*Hit, 0, len(m.chunks))
	for _, c := range m.chunks {
		if !filters.Matches(c.Metadata) {
			continue
		}
		hits = append(hits, &Hit{Chunk: c, Score: CosineSimilarity(query, c.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove deletes chunks by ID. Unknown IDs are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.chunks, id)
	}
	return nil
}

// Size returns the number of chunks in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
