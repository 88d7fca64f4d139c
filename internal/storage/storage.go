// Package storage defines the chunk catalog the indexer writes and the vector index is rebuilt from.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/exasperation/internal/models"
)

// ErrNotFound is returned when a document or chunk does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document and chunk persistence operations.
type Storage interface {
	// UpsertDocument replaces doc and all of its chunks atomically.
	UpsertDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error
	DeleteDocument(ctx context.Context, id string) error

	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	ChunkIDs(ctx context.Context, docID string) ([]string, error)
	ListChunks(ctx context.Context) ([]*models.Chunk, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
