// Package server provides the HTTP API for utsushi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/config"
	"github.com/hyperjump/utsushi/internal/search"
)

// Server is the HTTP server for the utsushi API.
type Server struct {
	engine     *search.Engine
	remote     search.RemoteIndexer
	config     *config.ServerConfig
	maxResults int
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. remote may be nil,
// in which case remote indexing is not offered. maxResults is the default
// candidate count for remote indexing requests.
func NewServer(
	engine *search.Engine,
	remote search.RemoteIndexer,
	cfg *config.ServerConfig,
	maxResults int,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		remote:     remote,
		config:     cfg,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/index/remote", s.handleRemoteIndex)
		r.Get("/status", s.handleStatus)
		r.Post("/reset", s.handleReset)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
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
