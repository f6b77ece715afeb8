package models

import "time"

// ItemError records why a single document failed during a run.
type ItemError struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

// IndexingRunSummary is the outcome of one reindex invocation. It is never persisted.
type IndexingRunSummary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Removed   int           `json:"removed"`
	Canceled  bool          `json:"canceled"`
	Aborted   string        `json:"aborted,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Errors    []ItemError   `json:"errors"`
	// PruneErrors are stale records that could not be removed after the pass. They are not
	// counted in Failed, which covers attempted documents only.
	PruneErrors []ItemError `json:"prune_errors,omitempty"`
}

// Rate returns attempted documents per second, or 0 when no time elapsed.
func (s *IndexingRunSummary) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Attempted) / s.Elapsed.Seconds()
}

// Progress is a periodic observation emitted during a run.
type Progress struct {
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Percent returns processed/total in percent.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Processed) / float64(p.Total) * 100
}
