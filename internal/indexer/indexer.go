// Package indexer synchronizes the vector store with the documents of the primary store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/embedding"
	"github.com/hyperjump/pageindex/internal/keylock"
	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/internal/storage"
	"github.com/hyperjump/pageindex/internal/telemetry"
	"github.com/hyperjump/pageindex/internal/vector"
)

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkipped
	outcomeRemoved
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSucceeded:
		return "succeeded"
	case outcomeSkipped:
		return "skipped"
	case outcomeRemoved:
		return "removed"
	default:
		return "failed"
	}
}

// Indexer embeds documents from the primary store and upserts them into the vector store.
type Indexer struct {
	docs     storage.PrimaryStore
	embedder embedding.Embedder
	store    vector.Store
	config   *config.IndexerConfig
	locks    *keylock.Striped
	observer ProgressObserver
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger. Progress is logged at info level, per-document events at debug.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithObserver sets an observer for progress during ReindexAll.
func WithObserver(o ProgressObserver) Option {
	return func(idx *Indexer) { idx.observer = o }
}

// WithMetrics records per-document outcomes and run durations.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(idx *Indexer) { idx.metrics = m }
}

// New creates an indexer over the given stores and embedding provider.
func New(docs storage.PrimaryStore, emb embedding.Embedder, store vector.Store, cfg *config.IndexerConfig, opts ...Option) *Indexer {
	idx := &Indexer{
		docs:     docs,
		embedder: emb,
		store:    store,
		config:   cfg,
		locks:    keylock.New(0),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// run holds the mutable state of one ReindexAll call.
type run struct {
	mu           sync.Mutex
	summary      *models.IndexingRunSummary
	every        int
	lastReported int
}

// ReindexAll re-embeds every document of the primary store. Per-document failures are
// recorded in the summary and never stop the run. A fatal vector store error (dimension
// mismatch or storage failure) stops dispatching and is returned with the partial summary.
// When ctx is canceled no new documents are started, in-flight ones finish, and ctx.Err()
// is returned with a summary marked Canceled. Records whose document no longer exists are
// pruned after a complete pass.
func (idx *Indexer) ReindexAll(ctx context.Context) (*models.IndexingRunSummary, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "indexer.reindex_all")
	defer span.End()

	start := time.Now()
	r := &run{
		summary: &models.IndexingRunSummary{
			RunID:     uuid.NewString(),
			StartedAt: start,
			Errors:    []models.ItemError{},
		},
		every: idx.config.ProgressEvery,
	}
	if r.every <= 0 {
		r.every = 10
	}
	summary := r.summary
	span.SetAttributes(attribute.String("indexer.run_id", summary.RunID))

	docs, err := idx.docs.ListDocuments(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return summary, fmt.Errorf("failed to list documents: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	sort.Slice(ids, func(i, j int) bool { return models.LessID(ids[i], ids[j]) })
	summary.Total = len(ids)

	workers := max(idx.config.Workers, 1)
	idx.logger.Info("reindex started",
		zap.String("run_id", summary.RunID),
		zap.Int("documents", summary.Total),
		zap.Int("workers", workers))

	// In-flight items run on a context that survives caller cancellation but not an abort.
	workCtx, abort := context.WithCancelCause(context.WithoutCancel(ctx))
	defer abort(nil)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, id := range ids {
		if ctx.Err() != nil || workCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil || workCtx.Err() != nil {
				return nil
			}
			oc, err := idx.indexDocument(workCtx, id)
			if err != nil && models.IsFatalIndexError(err) {
				abort(err)
			}
			idx.record(workCtx, r, id, oc, err, start)
			return nil
		})
	}
	_ = g.Wait()

	fatal := context.Cause(workCtx)
	switch {
	case fatal != nil:
		summary.Aborted = fatal.Error()
	case ctx.Err() != nil:
		summary.Canceled = true
	default:
		idx.prune(workCtx, r, ids)
	}

	r.mu.Lock()
	if summary.Attempted == 0 || r.lastReported != summary.Attempted {
		idx.report(r, start)
	}
	r.mu.Unlock()

	summary.Elapsed = time.Since(start)
	idx.metrics.RecordRun(ctx, summary.Elapsed, summary.Canceled)
	span.SetAttributes(
		attribute.Int("indexer.total", summary.Total),
		attribute.Int("indexer.succeeded", summary.Succeeded),
		attribute.Int("indexer.failed", summary.Failed),
	)
	idx.logger.Info("reindex finished",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("removed", summary.Removed),
		zap.Bool("canceled", summary.Canceled),
		zap.Duration("elapsed", summary.Elapsed),
		zap.String("rate", fmt.Sprintf("%.2f docs/sec", summary.Rate())))

	if fatal != nil {
		span.SetStatus(codes.Error, fatal.Error())
		return summary, fmt.Errorf("reindex aborted: %w", fatal)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// record updates the run counters for one attempted document.
func (idx *Indexer) record(ctx context.Context, r *run, id string, oc outcome, err error, start time.Time) {
	if err != nil {
		oc = outcomeFailed
		idx.logger.Warn("failed to index document", zap.String("document_id", id), zap.Error(err))
	}
	idx.metrics.RecordDocument(ctx, oc.String())

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary
	s.Attempted++
	switch oc {
	case outcomeSucceeded:
		s.Succeeded++
	case outcomeSkipped:
		s.Skipped++
	case outcomeRemoved:
		s.Removed++
	case outcomeFailed:
		s.Failed++
		s.Errors = append(s.Errors, models.ItemError{DocumentID: id, Message: err.Error()})
	}
	if s.Attempted%r.every == 0 {
		idx.report(r, start)
	}
}

// report emits progress. Callers hold r.mu.
func (idx *Indexer) report(r *run, start time.Time) {
	s := r.summary
	p := models.Progress{
		Processed: s.Attempted,
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Elapsed:   time.Since(start),
	}
	r.lastReported = p.Processed
	idx.logger.Info("reindex progress",
		zap.String("progress", fmt.Sprintf("%d/%d (%.1f%%)", p.Processed, p.Total, p.Percent())),
		zap.Int("succeeded", p.Succeeded),
		zap.Int("failed", p.Failed))
	if idx.observer != nil {
		idx.observer.OnProgress(p)
	}
}

// prune deletes vector records whose document is gone. Each candidate is re-checked under
// its key lock so a document created during the run is kept.
func (idx *Indexer) prune(ctx context.Context, r *run, listed []string) {
	stored, err := idx.store.IDs(ctx)
	if err != nil {
		idx.logger.Warn("failed to list vector records for pruning", zap.Error(err))
		return
	}
	seen := make(map[string]struct{}, len(listed))
	for _, id := range listed {
		seen[id] = struct{}{}
	}
	for _, id := range stored {
		if _, ok := seen[id]; ok {
			continue
		}
		removed := false
		err := idx.locks.With(id, func() error {
			_, err := idx.docs.GetDocument(ctx, id)
			if err == nil {
				return nil
			}
			if !errors.Is(err, models.ErrNotFound) {
				return err
			}
			if err := idx.store.Delete(ctx, id); err != nil {
				return err
			}
			removed = true
			return nil
		})
		r.mu.Lock()
		if err != nil {
			r.summary.PruneErrors = append(r.summary.PruneErrors, models.ItemError{DocumentID: id, Message: err.Error()})
			idx.logger.Warn("failed to prune stale vector record", zap.String("document_id", id), zap.Error(err))
		} else if removed {
			r.summary.Removed++
			idx.logger.Debug("pruned stale vector record", zap.String("document_id", id))
		}
		r.mu.Unlock()
	}
}

// ReindexOne re-embeds a single document. If the document no longer exists its vector
// record is removed and an error wrapping ErrNotFound is returned.
func (idx *Indexer) ReindexOne(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: document id is empty", models.ErrInvalidInput)
	}
	oc, err := idx.indexDocument(ctx, id)
	if err != nil {
		oc = outcomeFailed
	}
	idx.metrics.RecordDocument(ctx, oc.String())
	if err != nil {
		return err
	}
	if oc == outcomeRemoved {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// HandleEvent applies a primary store change. Deletions remove the vector record and never
// upsert; creations and updates re-embed the document.
func (idx *Indexer) HandleEvent(ctx context.Context, ev models.DocumentEvent) error {
	if ev.DocumentID == "" || !ev.Type.Valid() {
		return fmt.Errorf("%w: event %q for document %q", models.ErrInvalidInput, ev.Type, ev.DocumentID)
	}
	if ev.Type != models.EventDeleted {
		return idx.ReindexOne(ctx, ev.DocumentID)
	}
	return idx.locks.With(ev.DocumentID, func() error {
		if err := idx.store.Delete(ctx, ev.DocumentID); err != nil {
			return err
		}
		idx.logger.Debug("vector record deleted", zap.String("document_id", ev.DocumentID))
		return nil
	})
}

// indexDocument runs fetch, embed and upsert for one document under its key lock.
func (idx *Indexer) indexDocument(ctx context.Context, id string) (outcome, error) {
	idx.locks.Lock(id)
	defer idx.locks.Unlock(id)

	doc, err := idx.docs.GetDocument(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		if err := idx.store.Delete(ctx, id); err != nil {
			return outcomeFailed, err
		}
		idx.logger.Debug("document vanished, vector record removed", zap.String("document_id", id))
		return outcomeRemoved, nil
	}
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to fetch document: %w", err)
	}

	text := DocumentText(doc)
	hash := ContentHash(text)
	if idx.config.SkipUnchanged {
		if prev, err := idx.store.Get(ctx, id); err == nil && prev.Metadata.ContentHash == hash {
			idx.logger.Debug("document unchanged, skipping", zap.String("document_id", id))
			return outcomeSkipped, nil
		}
	}

	vec, err := idx.embed(ctx, id, text)
	if err != nil {
		return outcomeFailed, err
	}
	meta := models.RecordMetadata{
		Title:       doc.Title,
		ChapterID:   doc.ChapterID,
		ContentHash: hash,
		IndexedAt:   time.Now().UTC(),
	}
	if err := idx.store.Upsert(ctx, id, vec, meta); err != nil {
		return outcomeFailed, err
	}
	idx.logger.Debug("document indexed", zap.String("document_id", id), zap.Int("dimensions", len(vec)))
	return outcomeSucceeded, nil
}

// embed calls the provider with exponential backoff. Invalid input is not retried.
func (idx *Indexer) embed(ctx context.Context, id, text string) ([]float32, error) {
	op := func() ([]float32, error) {
		vec, err := idx.embedder.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, models.ErrInvalidInput) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	b := backoff.NewExponentialBackOff()
	if idx.config.RetryBackoff > 0 {
		b.InitialInterval = idx.config.RetryBackoff
	}
	vec, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(idx.config.MaxRetries, 0)+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			idx.logger.Debug("embedding failed, retrying",
				zap.String("document_id", id),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}
	return vec, nil
}
