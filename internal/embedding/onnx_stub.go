//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/pageindex/internal/models"
)

var errONNXUnavailable = fmt.Errorf("%w: onnx provider needs a cgo build with onnxruntime installed", models.ErrProviderUnavailable)

// ONNXEmbedder is unavailable in pure-Go builds; use the gemini or mock provider instead.
type ONNXEmbedder struct{}

func NewONNXEmbedder(string, int, int) (*ONNXEmbedder, error) {
	return nil, errONNXUnavailable
}

func (*ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errONNXUnavailable
}

func (*ONNXEmbedder) Dimensions() int { return 0 }

func (*ONNXEmbedder) Close() error { return nil }
