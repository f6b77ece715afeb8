// Package search answers text queries with ranked matches from the vector store.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/embedding"
	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/internal/telemetry"
	"github.com/hyperjump/pageindex/internal/vector"
)

const fallbackTopK = 5

// Service embeds query text and ranks vector store records by cosine similarity.
type Service struct {
	embedder embedding.Embedder
	store    vector.Store
	config   *config.SearchConfig
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records search latency and status.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a search service.
func NewService(emb embedding.Embedder, store vector.Store, cfg *config.SearchConfig, opts ...Option) *Service {
	s := &Service{
		embedder: emb,
		store:    store,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultTopK returns the configured default result count, bounded by the ceiling.
func (s *Service) DefaultTopK() int {
	k := s.config.DefaultTopK
	if k <= 0 {
		k = fallbackTopK
	}
	return s.clamp(k)
}

func (s *Service) clamp(k int) int {
	if s.config.MaxTopK > 0 && k > s.config.MaxTopK {
		return s.config.MaxTopK
	}
	return k
}

// Search returns at most topK results for queryText, best first, ranked from 1.
// topK above the configured ceiling is clamped. An empty store yields an empty slice.
func (s *Service) Search(ctx context.Context, queryText string, topK int) ([]*models.SearchResult, error) {
	start := time.Now()
	results, err := s.search(ctx, queryText, topK)
	s.metrics.RecordSearch(ctx, time.Since(start), statusOf(err))
	if err != nil {
		s.logger.Debug("search failed", zap.String("query", queryText), zap.Error(err))
		return nil, err
	}
	s.logger.Debug("search completed",
		zap.String("query", queryText),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// Query runs a wire-level request, resolving an absent top_k to the default.
func (s *Service) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	topK, err := q.Validate(s.DefaultTopK())
	if err != nil {
		return nil, err
	}
	results, err := s.Search(ctx, q.Query, topK)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     q.Query,
	}, nil
}

// Stats returns the vector store statistics.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	return s.store.Stats(ctx)
}

type embedResult struct {
	vec []float32
	err error
}

func (s *Service) search(ctx context.Context, queryText string, topK int) ([]*models.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", models.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrInvalidInput, topK)
	}
	topK = s.clamp(topK)

	ctx, span := telemetry.Tracer().Start(ctx, "search.query")
	defer span.End()
	span.SetAttributes(attribute.Int("search.top_k", topK))

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	// The provider may ignore ctx, so wait on it from a separate goroutine.
	ch := make(chan embedResult, 1)
	go func() {
		vec, err := s.embedder.Embed(ctx, queryText)
		ch <- embedResult{vec: vec, err: err}
	}()

	var vec []float32
	select {
	case <-ctx.Done():
		err := s.contextError(ctx)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	case r := <-ch:
		if r.err != nil {
			err := s.providerError(ctx, r.err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		vec = r.vec
	}

	matches, err := s.store.Query(ctx, vec, topK)
	if err != nil {
		if ctx.Err() != nil {
			err = s.contextError(ctx)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]*models.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = &models.SearchResult{
			DocumentID: m.DocumentID,
			Title:      m.Metadata.Title,
			ChapterID:  m.Metadata.ChapterID,
			Score:      m.Score,
			Rank:       i + 1,
		}
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

func (s *Service) contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: search exceeded %s", models.ErrTimeout, s.config.Timeout)
	}
	return ctx.Err()
}

func (s *Service) providerError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return s.contextError(ctx)
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrProviderUnavailable):
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrTimeout):
		return "timeout"
	case errors.Is(err, models.ErrProviderUnavailable):
		return "provider_unavailable"
	}
	return "error"
}
