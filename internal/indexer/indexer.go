package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/config"
	"github.com/hyperjump/exasperation/internal/embedding"
	"github.com/hyperjump/exasperation/internal/keyword"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/storage"
	"github.com/hyperjump/exasperation/internal/vector"
	"github.com/hyperjump/exasperation/pkg/utils"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 16 << 20

// TitleSink receives document titles for autocomplete. *keyword.Corpus implements it.
type TitleSink interface {
	Add(ctx context.Context, id, text, kind string) error
}

// Stats summarizes one ingestion run.
type Stats struct {
	Documents int
	Chunks    int
	Skipped   int
}

// Indexer indexes documents into the catalog, the vector index and the keyword corpus.
type Indexer struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	index     vector.VectorIndex
	titles    TitleSink
	chunker   *Chunker
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = utils.OrNop(l) }
}

// WithTitleSink sets where document titles are recorded.
func WithTitleSink(s TitleSink) IndexerOption {
	return func(idx *Indexer) { idx.titles = s }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	index vector.VectorIndex,
	cfg config.IndexerConfig,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:   store,
		embedder:  embedder,
		index:     index,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		batchSize: cfg.BatchSize,
		logger:    zap.NewNop(),
	}
	if idx.batchSize <= 0 {
		idx.batchSize = 32
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexDocument chunks, embeds and stores doc, replacing any earlier version.
// It returns the number of chunks written.
func (idx *Indexer) IndexDocument(ctx context.Context, doc *models.Document) (int, error) {
	if err := validateDocument(doc); err != nil {
		return 0, err
	}
	chunks := idx.chunksFor(doc)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s has no content", doc.ID)
	}

	if err := idx.embed(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to generate embeddings for %s: %w", doc.ID, err)
	}

	stale, err := idx.storage.ChunkIDs(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list chunks of %s: %w", doc.ID, err)
	}
	if err := idx.storage.UpsertDocument(ctx, doc, chunks); err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}
	if len(stale) > 0 {
		if err := idx.index.Remove(ctx, stale); err != nil {
			return 0, fmt.Errorf("failed to delete from vector index: %w", err)
		}
	}
	if err := idx.index.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}
	if idx.titles != nil && doc.Title != "" {
		if err := idx.titles.Add(ctx, keyword.PhraseID(keyword.KindTitle, doc.ID), doc.Title, keyword.KindTitle); err != nil {
			return 0, fmt.Errorf("failed to index title: %w", err)
		}
	}
	idx.logger.Debug("indexer document indexed", zap.String("doc_id", doc.ID), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

func validateDocument(doc *models.Document) error {
	var missing []string
	if strings.TrimSpace(doc.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(doc.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(doc.DocumentType) == "" {
		missing = append(missing, "document_type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("document %q: missing %s", doc.ID, strings.Join(missing, ", "))
	}
	return nil
}

// chunksFor uses pre-split chunks when present, otherwise chunks Content.
func (idx *Indexer) chunksFor(doc *models.Document) []*models.Chunk {
	var chunks []*models.Chunk
	if len(doc.Chunks) > 0 {
		for _, in := range doc.Chunks {
			text := Preprocess(in.Content)
			if text == "" {
				continue
			}
			n := len(chunks)
			id := in.ID
			if id == "" {
				id = ChunkID(doc.ID, n)
			}
			chunks = append(chunks, &models.Chunk{ID: id, DocumentID: doc.ID, Content: text, ChunkIndex: n})
		}
	} else {
		chunks = idx.chunker.Chunk(doc.ID, Preprocess(doc.Content))
	}
	meta := doc.Metadata()
	for _, c := range chunks {
		c.Title = doc.Title
		c.URL = doc.URL
		c.Metadata = meta
	}
	return chunks
}

func (idx *Indexer) embed(ctx context.Context, chunks []*models.Chunk) error {
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Title + "\n" + c.Content
		}
		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		for i, v := range vecs {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// IngestFile reads a JSONL corpus at path, one document per line, and indexes each
// document. Malformed or invalid lines are logged and skipped; embedding and storage
// failures stop the run.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (Stats, error) {
	idx.logger.Debug("indexer ingesting file", zap.String("path", path))
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	stats, err := idx.Ingest(ctx, f, path)
	if err != nil {
		return stats, err
	}
	idx.logger.Info("corpus ingested",
		zap.String("path", path),
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// Ingest indexes the JSONL documents read from r. source names r in log lines.
func (idx *Indexer) Ingest(ctx context.Context, r io.Reader, source string) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		doc, err := decodeDocument([]byte(raw))
		if err == nil {
			err = validateDocument(doc)
		}
		if err != nil {
			idx.logger.Warn("skipping corpus line", zap.String("source", source), zap.Int("line", line), zap.Error(err))
			stats.Skipped++
			continue
		}
		n, err := idx.IndexDocument(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("%s:%d: %w", source, line, err)
		}
		stats.Documents++
		stats.Chunks += n
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read %s: %w", source, err)
	}
	return stats, nil
}

type jsonDocument struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	URL          string              `json:"url"`
	DocumentType string              `json:"document_type"`
	Vendor       string              `json:"vendor"`
	Product      string              `json:"product"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
	Content      string              `json:"content"`
	Chunks       []models.ChunkInput `json:"chunks"`
}

// decodeDocument parses one corpus record. Attribute values are lower-cased so they
// compare equal to filter values; dates accept YYYY-MM-DD or RFC 3339.
func decodeDocument(data []byte) (*models.Document, error) {
	var j jsonDocument
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	doc := &models.Document{
		ID:           strings.TrimSpace(j.ID),
		Title:        strings.TrimSpace(j.Title),
		URL:          strings.TrimSpace(j.URL),
		DocumentType: strings.ToLower(strings.TrimSpace(j.DocumentType)),
		Vendor:       strings.ToLower(strings.TrimSpace(j.Vendor)),
		Product:      strings.ToLower(strings.TrimSpace(j.Product)),
		Content:      j.Content,
		Chunks:       j.Chunks,
	}
	var err error
	if j.CreatedAt != "" {
		if doc.CreatedAt, err = models.ParseDate(j.CreatedAt); err != nil {
			return nil, fmt.Errorf("created_at: %w", err)
		}
	}
	if j.UpdatedAt != "" {
		if doc.UpdatedAt, err = models.ParseDate(j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("updated_at: %w", err)
		}
	} else {
		doc.UpdatedAt = doc.CreatedAt
	}
	return doc, nil
}

// Rebuild loads every catalog chunk into the vector index and returns the count.
// Chunks stored without an embedding are re-embedded.
func (idx *Indexer) Rebuild(ctx context.Context) (int, error) {
	chunks, err := idx.storage.ListChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list chunks: %w", err)
	}
	var missing []*models.Chunk
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		idx.logger.Warn("re-embedding chunks without stored vectors", zap.Int("chunks", len(missing)))
		if err := idx.embed(ctx, missing); err != nil {
			return 0, fmt.Errorf("failed to generate embeddings: %w", err)
		}
	}
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := idx.index.Upsert(ctx, chunks[start:end]); err != nil {
			return start, fmt.Errorf("failed to index vectors: %w", err)
		}
	}
	if idx.titles != nil {
		seen := make(map[string]bool)
		for _, c := range chunks {
			if seen[c.DocumentID] || c.Title == "" {
				continue
			}
			seen[c.DocumentID] = true
			if err := idx.titles.Add(ctx, keyword.PhraseID(keyword.KindTitle, c.DocumentID), c.Title, keyword.KindTitle); err != nil {
				return len(chunks), fmt.Errorf("failed to index title: %w", err)
			}
		}
	}
	idx.logger.Info("vector index rebuilt", zap.Int("chunks", len(chunks)), zap.String("index", idx.index.Type()))
	return len(chunks), nil
}

// DeleteDocument removes a document from the vector index and the catalog.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	idx.logger.Debug("indexer deleting document", zap.String("id", id))
	ids, err := idx.storage.ChunkIDs(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}
	if err := idx.index.Remove(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
