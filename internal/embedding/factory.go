package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/config"
)

// New creates the embedder named by cfg.Provider ("gemini", "onnx" or "mock") and wraps it
// in an LRU cache when cfg.CacheSize > 0.
func New(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var (
		emb Embedder
		err error
	)
	switch cfg.Provider {
	case "gemini", "google", "":
		emb, err = NewGeminiEmbedder(ctx, cfg, logger)
	case "onnx":
		emb, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "mock":
		emb = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		emb = NewCachedEmbedder(emb, cfg.CacheSize)
	}
	return emb, nil
}
