package models

import "errors"

// Sentinel errors shared by the vector store, indexer and search service.
// Wrap them with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	// ErrInvalidInput means a caller-supplied argument violates a precondition. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDimensionMismatch means an embedding length disagrees with the store dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrProviderUnavailable means the embedding provider failed or is unreachable.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrNotFound means a document expected to exist is absent from the primary store.
	ErrNotFound = errors.New("not found")
	// ErrStore means the underlying storage failed.
	ErrStore = errors.New("store error")
	// ErrTimeout means an operation exceeded its time budget.
	ErrTimeout = errors.New("timeout")
)

// IsFatalIndexError reports whether err should abort a batch run instead of being recorded
// against a single document.
func IsFatalIndexError(err error) bool {
	return errors.Is(err, ErrDimensionMismatch) || errors.Is(err, ErrStore)
}
