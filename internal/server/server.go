// Package server provides the HTTP API for QueryTube.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/catalog"
	"github.com/querytube/querytube/internal/config"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/search"
)

// Pipeline is the ingestion surface the HTTP handlers drive.
type Pipeline interface {
	Collect(ctx context.Context, req *models.CollectRequest) (*models.CollectResponse, error)
	FetchTranscripts(ctx context.Context, req *models.TranscriptsRequest) (*models.TranscriptsResponse, error)
	BuildIndex(ctx context.Context, req *models.EmbedRequest) (*models.EmbedResponse, error)
}

// Server is the HTTP server for the QueryTube API.
type Server struct {
	engine   *search.Engine
	pipeline Pipeline
	catalog  catalog.Catalog
	config   *config.ServerConfig
	logger   *zap.Logger
	version  string
	started  time.Time
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	pipeline Pipeline,
	cat catalog.Catalog,
	cfg *config.ServerConfig,
	version string,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		pipeline: pipeline,
		catalog:  cat,
		config:   cfg,
		version:  version,
		started:  time.Now(),
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/search", s.handleSearch)
	r.Get("/api/search", s.handleSearchGet)
	r.Get("/api/autocomplete", s.handleAutocomplete)
	r.Post("/api/ingest/collect", s.handleCollect)
	r.Post("/api/ingest/transcripts", s.handleTranscripts)
	r.Post("/api/ingest/embed", s.handleEmbed)
	r.Get("/api/videos/{id}", s.handleGetVideo)
	r.Get("/api/videos/{id}/transcript", s.handleGetTranscript)
	r.Get("/api/admin/status", s.handleStatus)
	r.Post("/api/admin/reload-index", s.handleReloadIndex)
	r.Get("/health", s.handleHealth)

	return r
}

// requestLogger logs one line per request through the structured logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
