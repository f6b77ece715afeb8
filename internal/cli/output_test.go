package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/pageindex/internal/models"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("ParseFormat(%q) error = %v, want ErrInvalidInput", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "install",
		QueryTime: 12,
		Total:     2,
		Results: []*models.SearchResult{
			{DocumentID: "1", Title: "Getting started", ChapterID: "basics", Score: 0.91234, Rank: 1},
			{DocumentID: "7", Title: strings.Repeat("long title ", 10), Score: 0.5, Rank: 2},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	results, _ := decoded["results"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("results = %v", decoded["results"])
	}
	first := results[0].(map[string]interface{})
	if first["document_id"] != "1" || first["similarity_score"] == nil {
		t.Errorf("first result = %v", first)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "1: Getting started (score: 0.912)", "chapter: basics", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSearchResults(&buf, &models.SearchResponse{Query: "nothing"}, OutputText)
	if !strings.Contains(buf.String(), "No results") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteSummary_Text(t *testing.T) {
	s := &models.IndexingRunSummary{
		Total: 10, Attempted: 10, Succeeded: 9, Failed: 1, Removed: 2,
		Elapsed: 2 * time.Second,
		Errors:  []models.ItemError{{DocumentID: "7", Message: "embedding provider unavailable"}},
	}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Indexing complete", "Indexed:            9", "Failed:             1", "Removed:            2", "5.00 pages/sec", "7: embedding provider unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Unchanged") {
		t.Error("Unchanged printed with zero skipped")
	}
	if strings.Contains(out, "Stale records") {
		t.Error("prune section printed without prune errors")
	}
}

func TestWriteSummary_PruneErrors(t *testing.T) {
	s := &models.IndexingRunSummary{
		PruneErrors: []models.ItemError{{DocumentID: "old/9", Message: "store failure: database is locked"}},
	}
	var buf bytes.Buffer
	_ = WriteSummary(&buf, s, OutputText)
	if !strings.Contains(buf.String(), "Stale records not removed:\n  old/9: store failure") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteSummary_AbortedAndCanceled(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSummary(&buf, &models.IndexingRunSummary{Aborted: "dimension mismatch"}, OutputText)
	if !strings.Contains(buf.String(), "Indexing aborted: dimension mismatch") {
		t.Errorf("output = %q", buf.String())
	}
	buf.Reset()
	_ = WriteSummary(&buf, &models.IndexingRunSummary{Canceled: true}, OutputText)
	if !strings.Contains(buf.String(), "Indexing canceled") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteStats(&buf, models.Stats{Count: 3, Dimension: 768}, OutputText)
	if !strings.Contains(buf.String(), "Vectors:      3") || !strings.Contains(buf.String(), "never") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	ProgressPrinter(&buf).OnProgress(models.Progress{Processed: 10, Total: 40, Succeeded: 9, Failed: 1, Elapsed: 2 * time.Second})
	want := "Progress: 10/40 (25.0%) | ok: 9 | failed: 1 | rate: 5.0 pages/sec\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
