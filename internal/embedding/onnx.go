//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/pkg/utils"
)

// Input and output names of a BERT-style sentence model exported with pooling.
var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"output"}
)

// onnxBuffers are the tensors bound to a session. ids, mask and types are
// [1, maxTokens]; out is [1, dimensions].
type onnxBuffers struct {
	ids, mask, types *ort.Tensor[int64]
	out              *ort.Tensor[float32]
}

func newONNXBuffers(maxTokens, dimensions int) (b *onnxBuffers, err error) {
	b = &onnxBuffers{}
	defer func() {
		if err != nil {
			b.destroy()
		}
	}()
	in := ort.NewShape(1, int64(maxTokens))
	for _, t := range []**ort.Tensor[int64]{&b.ids, &b.mask, &b.types} {
		if *t, err = ort.NewEmptyTensor[int64](in); err != nil {
			return nil, fmt.Errorf("failed to allocate input tensor: %w", err)
		}
	}
	if b.out, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimensions))); err != nil {
		return nil, fmt.Errorf("failed to allocate output tensor: %w", err)
	}
	return b, nil
}

func (b *onnxBuffers) inputs() []ort.ArbitraryTensor {
	return []ort.ArbitraryTensor{b.ids, b.mask, b.types}
}

func (b *onnxBuffers) load(ids, mask, types []int64) {
	copy(b.ids.GetData(), ids)
	copy(b.mask.GetData(), mask)
	copy(b.types.GetData(), types)
}

func (b *onnxBuffers) destroy() {
	for _, t := range []*ort.Tensor[int64]{b.ids, b.mask, b.types} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if b.out != nil {
		_ = b.out.Destroy()
	}
	*b = onnxBuffers{}
}

// ONNXEmbedder embeds page text with a local model through ONNX Runtime. Requires cgo and the
// onnxruntime shared library. Calls are serialized since the session owns one set of buffers.
type ONNXEmbedder struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	buf        *onnxBuffers
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int
}

// NewONNXEmbedder opens the model at modelPath. Text longer than maxTokens is truncated.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("onnx model path is empty")
	}
	if dimensions <= 0 || maxTokens <= 0 {
		return nil, fmt.Errorf("onnx embedder needs positive dimensions and max tokens, got %d and %d", dimensions, maxTokens)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	buf, err := newONNXBuffers(maxTokens, dimensions)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewAdvancedSession(modelPath, onnxInputNames, onnxOutputNames,
		buf.inputs(), []ort.ArbitraryTensor{buf.out}, nil)
	if err != nil {
		buf.destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}
	return &ONNXEmbedder{
		session:    session,
		buf:        buf,
		tokenizer:  &SimpleTokenizer{},
		dimensions: dimensions,
		maxTokens:  maxTokens,
	}, nil
}

// Embed returns the unit-length embedding of text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.session == nil {
		return nil, fmt.Errorf("%w: onnx session closed", models.ErrProviderUnavailable)
	}

	e.buf.load(e.tokenizer.Tokenize(text, e.maxTokens))
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: onnx inference: %v", models.ErrProviderUnavailable, err)
	}
	vec := append([]float32(nil), e.buf.out.GetData()[:e.dimensions]...)
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the model's output dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases the session and its buffers. Embed fails with ErrProviderUnavailable afterwards.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.buf.destroy()
	return err
}
