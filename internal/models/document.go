// Package models defines the values that flow through the retrieval and answer pipeline.
package models

import (
	"time"
)

// ChunkMetadata holds the filterable attributes of a chunk.
type ChunkMetadata struct {
	DocumentType string    `json:"document_type"`
	Vendor       string    `json:"vendor"`
	Product      string    `json:"product"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chunk is a retrievable unit of document content. Chunks are immutable once ingested.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Title      string        `json:"title"`
	URL        string        `json:"url"`
	Content    string        `json:"content"`
	ChunkIndex int           `json:"chunk_index"`
	Metadata   ChunkMetadata `json:"metadata"`
	Embedding  []float32     `json:"-"`
}

// Document is a source document as read by the ingestion collaborator.
// Chunks may be supplied pre-split; otherwise Content is chunked on ingest.
type Document struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	DocumentType string       `json:"document_type"`
	Vendor       string       `json:"vendor"`
	Product      string       `json:"product"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Content      string       `json:"content,omitempty"`
	Chunks       []ChunkInput `json:"chunks,omitempty"`
}

// ChunkInput is a pre-split chunk inside a Document.
type ChunkInput struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

// Metadata returns the chunk metadata shared by all chunks of d.
func (d *Document) Metadata() ChunkMetadata {
	return ChunkMetadata{
		DocumentType: d.DocumentType,
		Vendor:       d.Vendor,
		Product:      d.Product,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
