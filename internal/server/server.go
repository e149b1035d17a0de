// Package server provides the HTTP API for regclause.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/internal/embedding"
	"github.com/hyperjump/regclause/internal/lifecycle"
	"github.com/hyperjump/regclause/internal/search"
	"github.com/hyperjump/regclause/pkg/utils"
	"go.uber.org/zap"
)

// Catalog is the index lifecycle the server reads from and rebuilds.
type Catalog interface {
	search.Catalog
	Current() *lifecycle.Snapshot
	Reindex(ctx context.Context) (int, error)
	Building() bool
	Embedder() embedding.Embedder
}

// Server is the HTTP server for the regclause API.
type Server struct {
	catalog Catalog
	engine  *search.Engine
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(catalog Catalog, engine *search.Engine, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		catalog: catalog,
		engine:  engine,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(s.config.Server.AllowOrigins))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/index", s.handleIndex)
	r.Get("/search", s.handleSearch)
	r.Post("/reindex", s.handleReindex)
	r.Get("/api/v1/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
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
