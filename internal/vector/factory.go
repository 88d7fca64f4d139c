package vector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/config"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for small corpora (<100k chunks).
	IndexTypeMemory IndexType = "memory"
	// IndexTypeQdrant uses a Qdrant server over its REST API.
	IndexTypeQdrant IndexType = "qdrant"
)

// NewVectorIndex creates the vector index selected by cfg.Type.
func NewVectorIndex(cfg config.VectorConfig, dimensions int, logger *zap.Logger) (VectorIndex, error) {
	switch IndexType(cfg.Type) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeQdrant:
		return NewQdrantIndex(QdrantConfig{
			URL:        cfg.URL,
			APIKey:     config.Secret(cfg.APIKeyEnv),
			Collection: cfg.Collection,
			Dimensions: dimensions,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, qdrant)", cfg.Type)
	}
}
