// Package indexer ingests documentation corpora into the chunk catalog, the vector index
// and the keyword corpus.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/exasperation/internal/models"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ChunkID is the ID of the n-th chunk of a document.
func ChunkID(docID string, n int) string {
	return fmt.Sprintf("%s#%d", docID, n)
}

// Chunk splits text into chunks with overlapping windows. IDs are ChunkID(docID, index),
// so re-chunking identical text yields identical IDs.
func (c *Chunker) Chunk(docID, text string) []*models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, 0, len(words)/c.chunkSize+1)
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		n := len(chunks)
		chunks = append(chunks, &models.Chunk{
			ID:         ChunkID(docID, n),
			DocumentID: docID,
			Content:    strings.Join(words[i:end], " "),
			ChunkIndex: n,
		})
		if end >= len(words) {
			break
		}
	}
	return chunks
}
