package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/resilience"
	"github.com/hyperjump/exasperation/pkg/utils"
)

// pointNamespace derives stable Qdrant point IDs from chunk IDs.
var pointNamespace = uuid.MustParse("6f1d2c1e-8a44-4b8e-9f57-1c3a5e0d7b21")

// QdrantConfig configures NewQdrantIndex.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Client     *http.Client
	Logger     *zap.Logger
}

// QdrantIndex is a VectorIndex backed by a Qdrant collection (cosine distance).
// Filters are translated into Qdrant payload conditions so they are enforced server-side.
// The collection is created on first write.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewQdrantIndex creates a Qdrant-backed index. No request is made until first use.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("dimensions must be positive")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &QdrantIndex{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		client:     client,
		logger:     utils.OrNop(cfg.Logger),
	}, nil
}

// Type returns the index type identifier.
func (q *QdrantIndex) Type() string {
	return string(IndexTypeQdrant)
}

// PointID returns the Qdrant point ID for a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type qdrantPayload struct {
	ChunkID       string    `json:"chunk_id"`
	DocumentID    string    `json:"document_id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Content       string    `json:"content"`
	ChunkIndex    int       `json:"chunk_index"`
	DocumentType  string    `json:"document_type"`
	Vendor        string    `json:"vendor"`
	Product       string    `json:"product"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedAtUnix int64     `json:"created_at_unix"`
}

func payloadFor(c *models.Chunk) qdrantPayload {
	return qdrantPayload{
		ChunkID:       c.ID,
		DocumentID:    c.DocumentID,
		Title:         c.Title,
		URL:           c.URL,
		Content:       c.Content,
		ChunkIndex:    c.ChunkIndex,
		DocumentType:  strings.ToLower(c.Metadata.DocumentType),
		Vendor:        strings.ToLower(c.Metadata.Vendor),
		Product:       strings.ToLower(c.Metadata.Product),
		CreatedAt:     c.Metadata.CreatedAt,
		UpdatedAt:     c.Metadata.UpdatedAt,
		CreatedAtUnix: c.Metadata.CreatedAt.Unix(),
	}
}

func (p qdrantPayload) chunk() *models.Chunk {
	return &models.Chunk{
		ID:         p.ChunkID,
		DocumentID: p.DocumentID,
		Title:      p.Title,
		URL:        p.URL,
		Content:    p.Content,
		ChunkIndex: p.ChunkIndex,
		Metadata: models.ChunkMetadata{
			DocumentType: p.DocumentType,
			Vendor:       p.Vendor,
			Product:      p.Product,
			CreatedAt:    p.CreatedAt,
			UpdatedAt:    p.UpdatedAt,
		},
	}
}

// buildFilter translates a FilterSet into a Qdrant filter, or nil when unrestricted.
func buildFilter(f *models.FilterSet) map[string]any {
	if f.IsEmpty() {
		return nil
	}
	var must []map[string]any
	matchAny := func(key string, values []string) {
		if len(values) == 0 {
			return
		}
		lower := make([]string, len(values))
		for i, v := range values {
			lower[i] = strings.ToLower(strings.TrimSpace(v))
		}
		must = append(must, map[string]any{"key": key, "match": map[string]any{"any": lower}})
	}
	matchAny("document_type", f.DocumentTypes)
	matchAny("vendor", f.Vendors)
	matchAny("product", f.Products)
	if f.CreatedAfter != nil || f.CreatedBefore != nil {
		r := map[string]any{}
		if f.CreatedAfter != nil {
			r["gte"] = f.CreatedAfter.Unix()
		}
		if f.CreatedBefore != nil {
			r["lte"] = f.CreatedBefore.Unix()
		}
		must = append(must, map[string]any{"key": "created_at_unix", "range": r})
	}
	return map[string]any{"must": must}
}

// Search queries the collection with filters applied server-side.
// A collection that does not exist yet yields no hits.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, filters *models.FilterSet, k int) ([]*Hit, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), q.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	if f := buildFilter(filters); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/search", req, &resp)
	var se *resilience.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	hits := make([]*Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, &Hit{Chunk: r.Payload.chunk(), Score: r.Score})
	}
	return hits, nil
}

// Upsert writes chunks as points, creating the collection if needed.
func (q *QdrantIndex) Upsert(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx); err != nil {
		return err
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != q.dimensions {
			return fmt.Errorf("chunk %s: vector dimension mismatch: got %d, expected %d", c.ID, len(c.Embedding), q.dimensions)
		}
		points[i] = map[string]any{
			"id":      PointID(c.ID),
			"vector":  c.Embedding,
			"payload": payloadFor(c),
		}
	}
	return q.do(ctx, http.MethodPut, q.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil)
}

// Remove deletes points by chunk ID.
func (q *QdrantIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}
	err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/delete?wait=true", map[string]any{"points": points}, nil)
	var se *resilience.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// Size returns the exact point count, or 0 when Qdrant cannot be reached.
func (q *QdrantIndex) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		q.logger.Debug("qdrant count failed", zap.Error(err))
		return 0
	}
	return resp.Result.Count
}

// Close is a no-op.
func (q *QdrantIndex) Close() error {
	return nil
}

func (q *QdrantIndex) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", q.url, q.collection)
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready {
		return nil
	}
	err := q.do(ctx, http.MethodGet, q.collectionURL(), nil, nil)
	var se *resilience.StatusError
	switch {
	case err == nil:
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{"size": q.dimensions, "distance": "Cosine"},
		}
		if err := q.do(ctx, http.MethodPut, q.collectionURL(), body, nil); err != nil {
			return fmt.Errorf("create qdrant collection %s: %w", q.collection, err)
		}
		q.logger.Info("created qdrant collection", zap.String("collection", q.collection), zap.Int("dimensions", q.dimensions))
	default:
		return err
	}
	q.ready = true
	return nil
}

func (q *QdrantIndex) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &resilience.StatusError{Service: "qdrant", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}
