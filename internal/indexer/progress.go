package indexer

import "github.com/hyperjump/pageindex/internal/models"

// ProgressObserver receives periodic progress during a full reindex. Calls are serialized
// and made from worker goroutines, so implementations should return quickly.
type ProgressObserver interface {
	OnProgress(p models.Progress)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(p models.Progress)

// OnProgress calls f(p).
func (f ProgressFunc) OnProgress(p models.Progress) {
	f(p)
}
