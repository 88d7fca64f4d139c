package config

import (
	"time"

	"github.com/hyperjump/exasperation/internal/models"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/exasperation/data/db/catalog.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/exasperation/data/indices/keyword"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.ModelPath == "" && cfg.Embedding.Provider == "onnx" {
		cfg.Embedding.ModelPath = "/usr/local/var/exasperation/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	applyCallDefaults(&cfg.Embedding.CallConfig, 10*time.Second)

	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "memory"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "documentation"
	}
	applyCallDefaults(&cfg.Vector.CallConfig, 10*time.Second)

	if cfg.Rerank.Provider == "" {
		cfg.Rerank.Provider = "heuristic"
	}
	applyCallDefaults(&cfg.Rerank.CallConfig, 10*time.Second)

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "mock"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	applyCallDefaults(&cfg.LLM.CallConfig, 60*time.Second)

	if cfg.Retrieval.DefaultMaxResults == 0 {
		cfg.Retrieval.DefaultMaxResults = 10
	}
	if cfg.Retrieval.MaxResultsLimit == 0 {
		cfg.Retrieval.MaxResultsLimit = 100
	}
	if cfg.Retrieval.DefaultRerank == nil {
		t := true
		cfg.Retrieval.DefaultRerank = &t
	}
	if cfg.Retrieval.DefaultThreshold == nil {
		th := 0.7
		cfg.Retrieval.DefaultThreshold = &th
	}
	if cfg.Retrieval.IncludeMetadata == nil {
		t := true
		cfg.Retrieval.IncludeMetadata = &t
	}
	if cfg.Retrieval.CandidateMultiplier == 0 {
		cfg.Retrieval.CandidateMultiplier = 4
	}
	if cfg.Retrieval.ExpandAcronyms == nil {
		t := true
		cfg.Retrieval.ExpandAcronyms = &t
	}

	if cfg.Context.MaxTokens == 0 {
		cfg.Context.MaxTokens = 4000
	}
	if cfg.Context.CharsPerToken == 0 {
		cfg.Context.CharsPerToken = 4
	}

	if cfg.Suggestions.Limit == 0 {
		cfg.Suggestions.Limit = 3
	}
	if cfg.Suggestions.AutocompleteLimit == 0 {
		cfg.Suggestions.AutocompleteLimit = 5
	}
	if cfg.Suggestions.Timeout == 0 {
		cfg.Suggestions.Timeout = 2 * time.Second
	}

	if cfg.Indexer.ChunkSize == 0 {
		cfg.Indexer.ChunkSize = 512
	}
	if cfg.Indexer.ChunkOverlap == 0 {
		cfg.Indexer.ChunkOverlap = 50
	}
	if cfg.Indexer.BatchSize == 0 {
		cfg.Indexer.BatchSize = 32
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}

	if len(cfg.Metadata.DocumentTypes) == 0 && len(cfg.Metadata.Vendors) == 0 {
		cfg.Metadata = models.DefaultCatalog()
	}
}

func applyCallDefaults(c *CallConfig, timeout time.Duration) {
	if c.Timeout == 0 {
		c.Timeout = timeout
	}
	if c.MaxRetries == nil {
		one := 1
		c.MaxRetries = &one
	}
	if c.Backoff == 0 {
		c.Backoff = 200 * time.Millisecond
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
}
