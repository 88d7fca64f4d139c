// Package main is the exasperation CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/assembler"
	"github.com/hyperjump/exasperation/internal/cli"
	"github.com/hyperjump/exasperation/internal/config"
	"github.com/hyperjump/exasperation/internal/embedding"
	"github.com/hyperjump/exasperation/internal/indexer"
	"github.com/hyperjump/exasperation/internal/keyword"
	"github.com/hyperjump/exasperation/internal/llm"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/query"
	"github.com/hyperjump/exasperation/internal/rerank"
	"github.com/hyperjump/exasperation/internal/resilience"
	"github.com/hyperjump/exasperation/internal/retrieval"
	"github.com/hyperjump/exasperation/internal/server"
	"github.com/hyperjump/exasperation/internal/storage"
	"github.com/hyperjump/exasperation/internal/suggest"
	"github.com/hyperjump/exasperation/internal/synthesis"
	"github.com/hyperjump/exasperation/internal/vector"
	"github.com/hyperjump/exasperation/internal/watcher"
	"github.com/hyperjump/exasperation/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/exasperation/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default and config.yaml exists in
// the current directory, that file is used instead. Returns the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "suggest":
		runSuggest()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("exasperation version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, validates it and creates the logger. It exits on failure.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", resolved, err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := components.Indexer.Rebuild(ctx)
	if err != nil {
		logger.Fatal("Failed to rebuild vector index", zap.Error(err))
	}
	logger.Info("vector index ready", zap.Int("chunks", n), zap.String("type", components.VectorIndex.Type()))

	if cfg.Watch.Enabled && len(cfg.Watch.Files) > 0 {
		idx := components.Indexer
		watchSvc := watcher.NewWatcher(cfg.Watch.Files, func(path string) {
			stats, err := idx.IngestFile(ctx, path)
			if err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("corpus file re-ingested",
				zap.String("path", path),
				zap.Int("documents", stats.Documents),
				zap.Int("chunks", stats.Chunks),
				zap.Int("skipped", stats.Skipped))
		}, watcher.WithLogger(logger), watcher.WithDebounce(cfg.Watch.Debounce))
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Suggester,
		components.Storage,
		components.VectorIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// optionalBool is a boolean flag that records whether it was set.
type optionalBool struct {
	value *bool
}

func (b *optionalBool) String() string {
	if b == nil || b.value == nil {
		return ""
	}
	return strconv.FormatBool(*b.value)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.value = &v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

// askRequest mirrors the POST /api/v1/search body.
type askRequest struct {
	Query   string      `json:"query"`
	Filters *askFilters `json:"filters,omitempty"`
	Options *askOptions `json:"options,omitempty"`
}

type askFilters struct {
	DocumentTypes []string `json:"document_types,omitempty"`
	Vendors       []string `json:"vendors,omitempty"`
	Products      []string `json:"products,omitempty"`
	CreatedAfter  string   `json:"created_after,omitempty"`
	CreatedBefore string   `json:"created_before,omitempty"`
}

type askOptions struct {
	MaxResults int      `json:"max_results,omitempty"`
	Rerank     *bool    `json:"rerank,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

type askFlags struct {
	types, vendors, products string
	after, before            string
	limit                    int
	threshold                float64
	rerank                   optionalBool
}

// buildAskRequest turns the query words and flags into a search request body.
// A negative threshold means the server default.
func buildAskRequest(args []string, f askFlags) askRequest {
	req := askRequest{Query: buildQueryText(args)}
	filters := askFilters{
		DocumentTypes: splitList(f.types),
		Vendors:       splitList(f.vendors),
		Products:      splitList(f.products),
		CreatedAfter:  strings.TrimSpace(f.after),
		CreatedBefore: strings.TrimSpace(f.before),
	}
	if len(filters.DocumentTypes)+len(filters.Vendors)+len(filters.Products) > 0 ||
		filters.CreatedAfter != "" || filters.CreatedBefore != "" {
		req.Filters = &filters
	}
	opts := askOptions{MaxResults: f.limit, Rerank: f.rerank.value}
	if f.threshold >= 0 {
		th := f.threshold
		opts.Threshold = &th
	}
	if opts.MaxResults > 0 || opts.Rerank != nil || opts.Threshold != nil {
		req.Options = &opts
	}
	return req
}

// toQuery converts the request for in-process handling.
func (r askRequest) toQuery() (*models.Query, error) {
	q := &models.Query{Text: r.Query}
	if f := r.Filters; f != nil {
		q.Filters.DocumentTypes = f.DocumentTypes
		q.Filters.Vendors = f.Vendors
		q.Filters.Products = f.Products
		if f.CreatedAfter != "" {
			t, err := models.ParseDate(f.CreatedAfter)
			if err != nil {
				return nil, err
			}
			q.Filters.CreatedAfter = &t
		}
		if f.CreatedBefore != "" {
			t, err := models.ParseDate(f.CreatedBefore)
			if err != nil {
				return nil, err
			}
			if !strings.Contains(f.CreatedBefore, "T") {
				t = models.EndOfDay(t)
			}
			q.Filters.CreatedBefore = &t
		}
	}
	if o := r.Options; o != nil {
		q.Options = models.Options{MaxResults: o.MaxResults, Rerank: o.Rerank, ScoreThreshold: o.Threshold}
	}
	return q, nil
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: exasperation ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Filter flags take comma-separated values. Dates are YYYY-MM-DD or RFC 3339.

Examples:
  exasperation ask How do I detect password reset abuse?
  exasperation ask -vendor okta,microsoft -type use_case,rule password reset
  exasperation ask -after 2024-01-01 -threshold 0.5 -rerank=false "okta parser fields"
  exasperation ask -server "" -output json "azure ad sign-in logs"   # in-process
`)
}

func runAsk() {
	args := argsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = answer in-process)")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	var f askFlags
	fs.StringVar(&f.types, "type", "", "document types, comma-separated")
	fs.StringVar(&f.vendors, "vendor", "", "vendors, comma-separated")
	fs.StringVar(&f.products, "product", "", "products, comma-separated")
	fs.StringVar(&f.after, "after", "", "only documents created on or after this date")
	fs.StringVar(&f.before, "before", "", "only documents created on or before this date")
	fs.IntVar(&f.limit, "limit", 0, "maximum number of sources (0 = server default)")
	fs.Float64Var(&f.threshold, "threshold", -1, "minimum relevance score in [0,1] (negative = server default)")
	fs.Var(&f.rerank, "rerank", "rerank candidates (default from config)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(args)

	req := buildAskRequest(fs.Args(), f)
	if req.Query == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var response *models.Response
	if *serverURL != "" {
		response, err = askViaHTTP(*serverURL, req)
	} else {
		response, err = askInProcess(*configPath, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteResponse(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askInProcess(configPath string, req askRequest) (*models.Response, error) {
	q, err := req.toQuery()
	if err != nil {
		return nil, err
	}
	cfg, _, logger := setup(configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	ctx := context.Background()
	if _, err := components.Indexer.Rebuild(ctx); err != nil {
		return nil, err
	}
	return components.Engine.Handle(ctx, q)
}

func askViaHTTP(serverURL string, req askRequest) (*models.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var response models.Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// httpError formats a non-200 response, preferring the API error envelope.
func httpError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil && env.Error.Code != "" {
		if len(env.Error.Details) > 0 {
			return fmt.Errorf("server returned %d (%s): %s %v", resp.StatusCode, env.Error.Code, env.Error.Message, env.Error.Details)
		}
		return fmt.Errorf("server returned %d (%s): %s", resp.StatusCode, env.Error.Code, env.Error.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runSuggest() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = in-process)")
	limit := fs.Int("limit", 5, "number of suggestions (1-20)")
	_ = fs.Parse(args)

	partial := buildQueryText(fs.Args())
	var (
		suggestions []string
		err         error
	)
	if *serverURL != "" {
		suggestions, err = suggestViaHTTP(*serverURL, partial, *limit)
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		var components *Components
		components, err = initializeComponents(cfg, logger)
		if err == nil {
			defer components.Close()
			suggestions, err = components.Suggester.Complete(context.Background(), partial, *limit)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
		os.Exit(1)
	}
	for _, s := range suggestions {
		fmt.Println(s)
	}
}

func suggestViaHTTP(serverURL, partial string, limit int) ([]string, error) {
	q := url.Values{}
	q.Set("q", partial)
	q.Set("limit", strconv.Itoa(limit))
	resp, err := http.Get(serverURL + "/api/v1/suggestions?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Suggestions, nil
}

func runIngest() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: exasperation ingest [flags] <corpus.jsonl>...")
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	var total indexer.Stats
	for _, path := range fs.Args() {
		stats, err := components.Indexer.IngestFile(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest %s failed: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d document(s), %d chunk(s), %d skipped\n", path, stats.Documents, stats.Chunks, stats.Skipped)
		total.Documents += stats.Documents
		total.Chunks += stats.Chunks
		total.Skipped += stats.Skipped
	}
	if fs.NArg() > 1 {
		fmt.Printf("total: %d document(s), %d chunk(s), %d skipped\n", total.Documents, total.Chunks, total.Skipped)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: exasperation delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Indexer.DeleteDocument(context.Background(), docID); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Status          string            `json:"status"`
	Documents       int64             `json:"documents"`
	Chunks          int64             `json:"chunks"`
	VectorIndexSize int               `json:"vector_index_size"`
	VectorIndexType string            `json:"vector_index_type,omitempty"`
	Providers       map[string]string `json:"providers,omitempty"`
	DiskUsage       *storage.Usage    `json:"disk_usage,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		ctx := context.Background()
		docCount, err := store.CountDocuments(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
			os.Exit(1)
		}
		chunkCount, err := store.CountChunks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Status:    "ok",
			Documents: docCount,
			Chunks:    chunkCount,
			Providers: map[string]string{
				"embedding": cfg.Embedding.Provider,
				"vector":    cfg.Vector.Type,
				"rerank":    cfg.Rerank.Provider,
				"llm":       cfg.LLM.Provider,
			},
		}
		if usage, err := storage.MeasureUsage(cfg.Storage.DatabasePath, cfg.Storage.KeywordIndexPath); err == nil {
			status.DiskUsage = &usage
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, &status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "status:             %s\n", s.Status)
	fmt.Fprintf(w, "documents:          %d   # indexed documents\n", s.Documents)
	fmt.Fprintf(w, "chunks:             %d   # text chunks in the catalog\n", s.Chunks)
	if s.VectorIndexType != "" {
		fmt.Fprintf(w, "vector_index:       %s (%d vectors)\n", s.VectorIndexType, s.VectorIndexSize)
	}
	if s.DiskUsage != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # catalog %d, corpus %d\n", s.DiskUsage.Total(), s.DiskUsage.Catalog, s.DiskUsage.Corpus)
	}
	if len(s.Providers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# providers")
		for _, k := range []string{"embedding", "vector", "rerank", "llm"} {
			if v, ok := s.Providers[k]; ok {
				fmt.Fprintf(w, "%-19s %s\n", k+":", v)
			}
		}
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// buildQueryText joins positional args so multi-word questions work with or without quotes.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// argsReorder moves flags that appear after the positional words to the front, since
// flag.Parse stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Corpus      *keyword.Corpus
	Indexer     *indexer.Indexer
	Engine      *query.Engine
	Suggester   *suggest.Generator
}

// Close releases every opened component.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Corpus != nil {
		_ = c.Corpus.Close()
	}
}

// initializeComponents builds the pipeline from cfg. Any provider that fails to
// construct aborts startup; there is no silent fallback to mocks.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	logger = utils.OrNop(logger)
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}
	c.Storage = store

	embedder, err := embedding.NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedder: %w", err))
	}
	c.Embedder = embedder

	vectorIndex, err := vector.NewVectorIndex(cfg.Vector, embedder.Dimensions(), logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize vector index: %w", err))
	}
	c.VectorIndex = vectorIndex

	reranker, err := rerank.NewReranker(cfg.Rerank)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize reranker: %w", err))
	}

	model, err := llm.NewLanguageModel(cfg.LLM, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize language model: %w", err))
	}

	corpus, err := keyword.NewCorpus(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize keyword corpus: %w", err))
	}
	c.Corpus = corpus
	if err := corpus.Seed(context.Background(), suggest.SeedQuestions(), keyword.KindQuestion); err != nil {
		return fail(fmt.Errorf("failed to seed keyword corpus: %w", err))
	}

	logger.Info("providers initialized",
		zap.String("embedding", cfg.Embedding.Provider),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.String("vector", vectorIndex.Type()),
		zap.String("rerank", cfg.Rerank.Provider),
		zap.String("llm", cfg.LLM.Provider))

	retrievalOpts := []retrieval.Option{
		retrieval.WithPolicies(retrieval.Policies{
			Embed:  cfg.Embedding.Policy(),
			Search: cfg.Vector.Policy(),
			Rerank: cfg.Rerank.Policy(),
		}),
		retrieval.WithCandidateMultiplier(cfg.Retrieval.CandidateMultiplier),
		retrieval.WithAcronymExpansion(cfg.Retrieval.ExpandAcronyms == nil || *cfg.Retrieval.ExpandAcronyms),
		retrieval.WithLogger(logger),
	}
	if reranker != nil {
		retrievalOpts = append(retrievalOpts, retrieval.WithReranker(reranker))
	}
	retriever := retrieval.NewEngine(embedder, vectorIndex, retrievalOpts...)

	synthesizer := synthesis.NewSynthesizer(model,
		synthesis.WithPolicy(cfg.LLM.Policy()),
		synthesis.WithGenerationOptions(llm.Options{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}),
		synthesis.WithLogger(logger))

	suggester := suggest.NewGenerator(corpus,
		suggest.WithPolicy(resilience.Policy{Timeout: cfg.Suggestions.Timeout}),
		suggest.WithLogger(logger))
	c.Suggester = suggester

	catalog := cfg.Metadata
	c.Engine = query.NewEngine(retriever, synthesizer, suggester, query.Config{
		Defaults:        cfg.Retrieval.Defaults(),
		Catalog:         &catalog,
		Budget:          assembler.BudgetFromTokens(cfg.Context.MaxTokens, cfg.Context.CharsPerToken, cfg.Context.MaxEntries),
		SuggestionLimit: cfg.Suggestions.Limit,
	}, query.WithLogger(logger))

	c.Indexer = indexer.NewIndexer(store, embedder, vectorIndex, cfg.Indexer,
		indexer.WithLogger(logger),
		indexer.WithTitleSink(corpus))
	return c, nil
}

func printUsage() {
	fmt.Println(`exasperation - answers questions over security integration documentation

Usage:
  exasperation server [flags]              Start the HTTP server
  exasperation ask [flags] <question>      Ask a question
  exasperation suggest [flags] <partial>   Autocomplete a partial question
  exasperation ingest [flags] <file>...    Ingest JSONL corpus files
  exasperation delete [flags] <id>         Delete a document
  exasperation status [flags]              Show catalog/index/provider status
  exasperation version                     Show version
  exasperation help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/exasperation/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --server string     Server URL (default: http://localhost:8080). Use --server "" to answer in-process.
  --type string       Document types, comma-separated
  --vendor string     Vendors, comma-separated
  --product string    Products, comma-separated
  --after string      Created on or after (YYYY-MM-DD)
  --before string     Created on or before (YYYY-MM-DD, inclusive)
  --limit int         Maximum number of sources
  --threshold float   Minimum relevance score in [0,1]
  --rerank            Rerank candidates (default from config)
  --output string     text, compact or json (default: text)

Examples:
  exasperation server
  exasperation ingest docs/corpus.jsonl
  exasperation ask How do I detect password reset abuse?
  exasperation ask --vendor okta --type rule,parser "password reset"
  exasperation suggest how do
  exasperation status --output json`)
}
