// Package embedding provides text embedding providers: Gemini, ONNX, and a deterministic mock, plus caching.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/pageindex/internal/models"
)

// Embedder produces fixed-length vector embeddings for text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// checkText rejects text no provider can embed.
func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text to embed is empty", models.ErrInvalidInput)
	}
	return nil
}
