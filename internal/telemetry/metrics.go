package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the application's metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	DocumentsIndexed metric.Int64Counter
	IndexRunDuration metric.Float64Histogram
	SearchRequests   metric.Int64Counter
	SearchDuration   metric.Float64Histogram
}

// InitMetrics creates the instruments on the global meter provider.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	documentsIndexed, err := meter.Int64Counter(
		"indexer.documents.total",
		metric.WithDescription("Documents processed by the indexer, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	indexRunDuration, err := meter.Float64Histogram(
		"indexer.run.duration",
		metric.WithDescription("Full reindex duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchRequests, err := meter.Int64Counter(
		"search.requests.total",
		metric.WithDescription("Search requests, by status"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Search latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		DocumentsIndexed: documentsIndexed,
		IndexRunDuration: indexRunDuration,
		SearchRequests:   searchRequests,
		SearchDuration:   searchDuration,
	}, nil
}

// RecordDocument counts one indexed document with its outcome ("succeeded", "failed", ...).
func (m *Metrics) RecordDocument(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.DocumentsIndexed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRun records the duration of a full reindex.
func (m *Metrics) RecordRun(ctx context.Context, elapsed time.Duration, canceled bool) {
	if m == nil {
		return
	}
	m.IndexRunDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("canceled", canceled)))
}

// RecordSearch records one search with its status ("ok", "invalid_input", "timeout", ...).
func (m *Metrics) RecordSearch(ctx context.Context, elapsed time.Duration, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.SearchRequests.Add(ctx, 1, attrs)
	m.SearchDuration.Record(ctx, elapsed.Seconds(), attrs)
}
