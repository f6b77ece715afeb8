package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/models"
)

type embedCall func(ctx context.Context, text string) ([]float32, error)

// GeminiEmbedder calls the Google Generative AI embedding API. Calls are paced by a rate
// limiter and guarded by a circuit breaker. Every failure is reported as ErrProviderUnavailable
// except empty input, which is ErrInvalidInput.
type GeminiEmbedder struct {
	client     *genai.Client
	call       embedCall
	model      string
	dimensions int
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewGeminiEmbedder creates a client for cfg.Model using cfg.APIKey.
func NewGeminiEmbedder(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := client.EmbeddingModel(cfg.Model)
	call := func(ctx context.Context, text string) ([]float32, error) {
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("no embedding returned")
		}
		return resp.Embedding.Values, nil
	}
	e := newGeminiEmbedder(call, cfg, logger)
	e.client = client
	return e, nil
}

func newGeminiEmbedder(call embedCall, cfg *config.EmbeddingConfig, logger *zap.Logger) *GeminiEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &GeminiEmbedder{
		call:       call,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1)),
		logger:     logger,
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return e
}

// Embed returns the embedding for text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("pageindex/embedding").Start(ctx, "gemini.embed_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", e.model),
		attribute.Int("gemini.input_chars", len(text)),
	)

	if err := e.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrProviderUnavailable, err)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.call(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("gemini embed failed", zap.Error(err))
		return nil, fmt.Errorf("%w: gemini: %v", models.ErrProviderUnavailable, err)
	}

	emb := result.([]float32)
	span.SetAttributes(attribute.Int("gemini.dimensions", len(emb)))
	return emb, nil
}

// Dimensions returns the configured embedding dimension.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// BreakerState returns the circuit breaker state, e.g. "closed" or "open".
func (e *GeminiEmbedder) BreakerState() string {
	return e.breaker.State().String()
}

// Close releases the API client.
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
