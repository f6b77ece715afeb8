package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/embedding"
	"github.com/hyperjump/pageindex/internal/indexer"
	"github.com/hyperjump/pageindex/internal/search"
	"github.com/hyperjump/pageindex/internal/storage"
	"github.com/hyperjump/pageindex/internal/telemetry"
	"github.com/hyperjump/pageindex/internal/vector"
)

// components holds everything a command needs. The vector store is created once at
// startup and handed to the indexer and search service.
type components struct {
	docs     storage.PrimaryStore
	embedder embedding.Embedder
	store    vector.Store
	search   *search.Service
	indexer  *indexer.Indexer
	logger   *zap.Logger
}

// Close releases all components. The vector store is closed last so a memory store
// snapshot is written after the indexer stops.
func (c *components) Close() {
	if c.embedder != nil {
		_ = c.embedder.Close()
	}
	if c.docs != nil {
		_ = c.docs.Close()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("failed to close vector store", zap.Error(err))
		}
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, idxOpts ...indexer.Option) (*components, error) {
	c := &components{logger: logger}

	docs, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary store: %w", err)
	}
	c.docs = docs

	emb, err := embedding.New(ctx, &cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.embedder = emb

	store, err := vector.NewStore(ctx, cfg.Storage.VectorKind, cfg.Storage.VectorPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.store = store

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", zap.Error(err))
	}

	stats, _ := store.Stats(ctx)
	logger.Info("components initialized",
		zap.String("primary_store", cfg.Storage.PrimaryKind),
		zap.String("vector_store", store.Type()),
		zap.Int("vectors", stats.Count),
		zap.String("embedding_provider", cfg.Embedding.Provider))

	c.search = search.NewService(emb, store, &cfg.Search,
		search.WithLogger(logger),
		search.WithMetrics(metrics))
	opts := append([]indexer.Option{
		indexer.WithLogger(logger),
		indexer.WithMetrics(metrics),
	}, idxOpts...)
	c.indexer = indexer.New(docs, emb, store, &cfg.Indexer, opts...)
	return c, nil
}
