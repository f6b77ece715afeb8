// Package cli formats command output for the pageindex CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/pageindex/internal/indexer"
	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const titleWidth = 50

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown output format %q (want text or json)", models.ErrInvalidInput, s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a search response in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		fmt.Fprintf(w, "No results for %q (%dms)\n", response.Query, response.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "Found %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
	for _, r := range response.Results {
		fmt.Fprintf(w, "%3d. %s: %s (score: %.3f)\n", r.Rank, r.DocumentID, utils.Truncate(r.Title, titleWidth), r.Score)
		if r.ChapterID != "" {
			fmt.Fprintf(w, "     chapter: %s\n", r.ChapterID)
		}
	}
	return nil
}

// WriteSummary writes the outcome of a reindex run.
func WriteSummary(w io.Writer, s *models.IndexingRunSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintln(w, strings.Repeat("=", 50))
	switch {
	case s.Aborted != "":
		fmt.Fprintf(w, "Indexing aborted: %s\n", s.Aborted)
	case s.Canceled:
		fmt.Fprintln(w, "Indexing canceled")
	default:
		fmt.Fprintln(w, "Indexing complete")
	}
	fmt.Fprintf(w, "  Total pages:        %d\n", s.Total)
	fmt.Fprintf(w, "  Attempted:          %d\n", s.Attempted)
	fmt.Fprintf(w, "  Indexed:            %d\n", s.Succeeded)
	fmt.Fprintf(w, "  Failed:             %d\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Unchanged:          %d\n", s.Skipped)
	}
	if s.Removed > 0 {
		fmt.Fprintf(w, "  Removed:            %d\n", s.Removed)
	}
	fmt.Fprintf(w, "  Time elapsed:       %.2f seconds\n", s.Elapsed.Seconds())
	fmt.Fprintf(w, "  Average rate:       %.2f pages/sec\n", s.Rate())
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.DocumentID, e.Message)
		}
	}
	if len(s.PruneErrors) > 0 {
		fmt.Fprintln(w, "Stale records not removed:")
		for _, e := range s.PruneErrors {
			fmt.Fprintf(w, "  %s: %s\n", e.DocumentID, e.Message)
		}
	}
	return nil
}

// WriteStats writes vector store statistics.
func WriteStats(w io.Writer, stats models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Vectors:      %d\n", stats.Count)
	fmt.Fprintf(w, "Dimension:    %d\n", stats.Dimension)
	if stats.LastUpdated.IsZero() {
		fmt.Fprintln(w, "Last updated: never")
	} else {
		fmt.Fprintf(w, "Last updated: %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

// ProgressPrinter returns an observer that prints one line per progress report.
func ProgressPrinter(w io.Writer) indexer.ProgressFunc {
	return func(p models.Progress) {
		rate := 0.0
		if secs := p.Elapsed.Seconds(); secs > 0 {
			rate = float64(p.Processed) / secs
		}
		fmt.Fprintf(w, "Progress: %d/%d (%.1f%%) | ok: %d | failed: %d | rate: %.1f pages/sec\n",
			p.Processed, p.Total, p.Percent(), p.Succeeded, p.Failed, rate)
	}
}
