package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/models"
)

func testGeminiConfig() *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Model:             "text-embedding-004",
		Dimensions:        3,
		RequestsPerSecond: 1000,
		Burst:             100,
		BreakerTimeout:    time.Minute,
	}
}

func TestGeminiEmbedder_Success(t *testing.T) {
	call := func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	}
	e := newGeminiEmbedder(call, testGeminiConfig(), zap.NewNop())
	emb, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 3 {
		t.Errorf("len = %d, want 3", len(emb))
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
}

func TestGeminiEmbedder_FailureIsProviderUnavailable(t *testing.T) {
	call := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("429 resource exhausted")
	}
	e := newGeminiEmbedder(call, testGeminiConfig(), zap.NewNop())
	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestGeminiEmbedder_EmptyTextSkipsProvider(t *testing.T) {
	called := false
	call := func(ctx context.Context, text string) ([]float32, error) {
		called = true
		return []float32{1}, nil
	}
	e := newGeminiEmbedder(call, testGeminiConfig(), zap.NewNop())
	if _, err := e.Embed(context.Background(), ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if called {
		t.Error("provider should not be called for empty text")
	}
}

func TestGeminiEmbedder_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	call := func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return nil, errors.New("unavailable")
	}
	e := newGeminiEmbedder(call, testGeminiConfig(), zap.NewNop())
	for i := 0; i < 5; i++ {
		e.Embed(context.Background(), "hello")
	}
	if e.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", e.BreakerState())
	}
	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5 (open breaker must not call provider)", calls)
	}
}

func TestGeminiEmbedder_CanceledContext(t *testing.T) {
	cfg := testGeminiConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 1
	call := func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1}, nil
	}
	e := newGeminiEmbedder(call, cfg, zap.NewNop())
	// consume the only token
	if _, err := e.Embed(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Embed(ctx, "b"); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}
