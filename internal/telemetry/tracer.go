// Package telemetry wires OpenTelemetry tracing and metrics for pageindex.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/config"
)

const instrumentationName = "github.com/hyperjump/pageindex"

// Tracer returns the tracer used by pageindex components. Until InitTracer installs a
// provider it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// InitTracer installs a global tracer provider exporting over OTLP/gRPC to cfg.Endpoint.
// When telemetry is disabled it installs nothing. The returned function flushes and shuts
// down the provider.
func InitTracer(ctx context.Context, cfg *config.TelemetryConfig, version string, logger *zap.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return noop, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	if logger != nil {
		logger.Info("tracing enabled",
			zap.String("endpoint", cfg.Endpoint),
			zap.Float64("sample_ratio", cfg.SampleRatio))
	}
	return tp.Shutdown, nil
}
