// Package server provides the HTTP API for pageindex.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/indexer"
	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/internal/search"
)

const requestTimeout = 60 * time.Second

var (
	// ErrReindexRunning is returned by ReindexAll while another full reindex holds the server.
	ErrReindexRunning = errors.New("reindex already running")
	// ErrStopped is returned by ReindexAll once Stop has been called.
	ErrStopped = errors.New("server is stopping")
)

// Server is the HTTP server for the search and reindex API.
type Server struct {
	search  *search.Service
	indexer *indexer.Indexer
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server

	// reindexMu is held for the duration of a full reindex; a second request gets 409.
	reindexMu sync.Mutex
	// runs is canceled by Stop and bounds every full reindex.
	runs       context.Context
	cancelRuns context.CancelFunc
	stopOnce   sync.Once
	idle       chan struct{}
}

// NewServer creates a server with the given dependencies.
func NewServer(svc *search.Service, idx *indexer.Indexer, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	runs, cancel := context.WithCancel(context.Background())
	return &Server{
		search:     svc,
		indexer:    idx,
		config:     cfg,
		logger:     logger,
		runs:       runs,
		cancelRuns: cancel,
		idle:       make(chan struct{}),
	}
}

// ReindexAll runs a full reindex unless one is already running. The run is canceled when
// ctx is done or the server stops, and Stop does not return before it has finished.
func (s *Server) ReindexAll(ctx context.Context) (*models.IndexingRunSummary, error) {
	if s.runs.Err() != nil {
		return nil, ErrStopped
	}
	if !s.reindexMu.TryLock() {
		return nil, ErrReindexRunning
	}
	defer s.reindexMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.runs, cancel)
	defer stop()
	return s.indexer.ReindexAll(ctx)
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// A full reindex may outlive the request timeout.
	r.Post("/api/v1/reindex", s.handleReindexAll)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.Compress(5))

		r.Post("/api/v1/search", s.handleSearch)
		r.Post("/api/v1/documents/{id}/reindex", s.handleReindexOne)
		r.Post("/api/v1/events", s.handleEvent)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/health", s.handleHealth)
	})
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

// Stop cancels any running reindex, shuts down the HTTP listener and waits until the reindex
// has returned, so no vector store writes are in flight afterwards. No new reindex starts
// once Stop has been called.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelRuns()
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.stopOnce.Do(func() {
		go func() {
			s.reindexMu.Lock()
			close(s.idle)
		}()
	})
	select {
	case <-s.idle:
		return err
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("reindex still running: %w", ctx.Err()))
	}
}
