// Package config provides configuration loading and structs for the exasperation server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/resilience"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Vector      VectorConfig      `yaml:"vector"`
	Rerank      RerankConfig      `yaml:"rerank"`
	LLM         LLMConfig         `yaml:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Context     ContextConfig     `yaml:"context"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Watch       WatchConfig       `yaml:"watch"`
	Metadata    models.Catalog    `yaml:"metadata"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// StorageConfig holds paths for the chunk catalog and the keyword corpus.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// CallConfig bounds calls to one external capability.
type CallConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	RateLimit  float64       `yaml:"rate_limit"`
	Burst      int           `yaml:"burst"`
}

// Policy returns the resilience policy for this capability.
func (c CallConfig) Policy() resilience.Policy {
	p := resilience.Policy{Timeout: c.Timeout, Backoff: c.Backoff, MaxRetries: 1}
	if c.MaxRetries != nil {
		p.MaxRetries = *c.MaxRetries
	}
	return p
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // mock | openai | ollama | onnx
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	CallConfig `yaml:",inline"`
}

// VectorConfig selects and configures the vector index.
type VectorConfig struct {
	Type       string `yaml:"type"` // memory | qdrant
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	APIKeyEnv  string `yaml:"api_key_env"`
	CallConfig `yaml:",inline"`
}

// RerankConfig selects and configures the reranker.
type RerankConfig struct {
	Provider   string `yaml:"provider"` // none | heuristic | http
	URL        string `yaml:"url"`
	Model      string `yaml:"model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	CallConfig `yaml:",inline"`
}

// LLMConfig selects and configures the language model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // mock | openai | ollama
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	CallConfig  `yaml:",inline"`
}

// RetrievalConfig holds request defaults and candidate sizing.
type RetrievalConfig struct {
	DefaultMaxResults   int      `yaml:"default_max_results"`
	MaxResultsLimit     int      `yaml:"max_results_limit"`
	DefaultRerank       *bool    `yaml:"default_rerank"`
	DefaultThreshold    *float64 `yaml:"default_threshold"`
	IncludeMetadata     *bool    `yaml:"include_metadata"`
	CandidateMultiplier int      `yaml:"candidate_multiplier"`
	ExpandAcronyms      *bool    `yaml:"expand_acronyms"`
}

// Defaults returns the per-request option defaults.
func (r *RetrievalConfig) Defaults() models.Defaults {
	return models.Defaults{
		MaxResults:      r.DefaultMaxResults,
		MaxResultsLimit: r.MaxResultsLimit,
		Rerank:          boolOr(r.DefaultRerank, true),
		ScoreThreshold:  floatOr(r.DefaultThreshold, 0.7),
		IncludeMetadata: boolOr(r.IncludeMetadata, true),
	}
}

// ContextConfig bounds the context window given to the language model.
type ContextConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	CharsPerToken int `yaml:"chars_per_token"`
	MaxEntries    int `yaml:"max_entries"`
}

// SuggestionsConfig holds suggestion and autocomplete settings.
type SuggestionsConfig struct {
	Limit             int           `yaml:"limit"`
	AutocompleteLimit int           `yaml:"autocomplete_limit"`
	Timeout           time.Duration `yaml:"timeout"`
}

// IndexerConfig holds chunking settings for ingestion.
type IndexerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	BatchSize    int `yaml:"batch_size"`
}

// WatchConfig holds corpus file watch settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Files    []string      `yaml:"files"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, loads a sibling .env file,
// expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := LoadEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Files {
		cfg.Watch.Files[i] = expandPath(cfg.Watch.Files[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadEnv loads KEY=value pairs from path into the process environment.
// A missing file is not an error. Variables already set are not overridden.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Secret returns the value of the environment variable named by envName.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

var (
	embeddingProviders = []string{"mock", "openai", "ollama", "onnx"}
	vectorTypes        = []string{"memory", "qdrant"}
	rerankProviders    = []string{"none", "heuristic", "http"}
	llmProviders       = []string{"mock", "openai", "ollama"}
)

// Validate rejects unknown provider names and out-of-range limits.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed []string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	check("embedding.provider", c.Embedding.Provider, embeddingProviders)
	check("vector.type", c.Vector.Type, vectorTypes)
	check("rerank.provider", c.Rerank.Provider, rerankProviders)
	check("llm.provider", c.LLM.Provider, llmProviders)

	if c.Vector.Type == "qdrant" && c.Vector.URL == "" {
		errs = append(errs, errors.New("vector.url is required for qdrant"))
	}
	if c.Rerank.Provider == "http" && c.Rerank.URL == "" {
		errs = append(errs, errors.New("rerank.url is required for the http reranker"))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, errors.New("embedding.dimensions must be positive"))
	}
	if c.Retrieval.DefaultMaxResults <= 0 || c.Retrieval.MaxResultsLimit <= 0 {
		errs = append(errs, errors.New("retrieval result limits must be positive"))
	}
	if c.Retrieval.DefaultMaxResults > c.Retrieval.MaxResultsLimit {
		errs = append(errs, errors.New("retrieval.default_max_results exceeds max_results_limit"))
	}
	if t := floatOr(c.Retrieval.DefaultThreshold, 0.7); t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("retrieval.default_threshold must be within [0,1], got %v", t))
	}
	if c.Retrieval.CandidateMultiplier <= 0 {
		errs = append(errs, errors.New("retrieval.candidate_multiplier must be positive"))
	}
	if c.Context.CharsPerToken <= 0 {
		errs = append(errs, errors.New("context.chars_per_token must be positive"))
	}
	if c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		errs = append(errs, errors.New("indexer.chunk_overlap must be smaller than chunk_size"))
	}
	return errors.Join(errs...)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
