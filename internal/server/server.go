// Package server exposes the query engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/config"
	"github.com/hyperjump/exasperation/internal/models"
	"github.com/hyperjump/exasperation/internal/storage"
	"github.com/hyperjump/exasperation/internal/vector"
	"github.com/hyperjump/exasperation/pkg/utils"
)

// QueryHandler answers one query. *query.Engine implements it.
type QueryHandler interface {
	Handle(ctx context.Context, q *models.Query) (*models.Response, error)
}

// Completer returns autocomplete suggestions. *suggest.Generator implements it.
type Completer interface {
	Complete(ctx context.Context, partial string, limit int) ([]string, error)
}

// Server is the HTTP server for the query API.
type Server struct {
	engine    QueryHandler
	completer Completer
	storage   storage.Storage
	index     vector.VectorIndex
	config    *config.Config
	validate  *validator.Validate
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. storage and index may be nil;
// the status endpoint then omits their counts.
func NewServer(
	engine QueryHandler,
	completer Completer,
	store storage.Storage,
	index vector.VectorIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:    engine,
		completer: completer,
		storage:   store,
		index:     index,
		config:    cfg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    utils.OrNop(logger),
	}
}

// Routes returns the HTTP handler with all middleware and endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/suggestions", s.handleSuggestions)
		r.Get("/metadata/options", s.handleMetadataOptions)
		r.Post("/feedback", s.handleFeedback)
		r.Get("/status", s.handleStatus)
	})
	return r
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.Server.RequestTimeout > 0 {
		return s.config.Server.RequestTimeout
	}
	return 120 * time.Second
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
