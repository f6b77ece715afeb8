package indexer

import (
	"testing"

	"github.com/hyperjump/pageindex/internal/models"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello   world  ", "hello world"},
		{"line1\n\n\tline2", "line1 line2"},
		{"", ""},
		{" \n ", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDocumentText(t *testing.T) {
	tests := []struct {
		title, content, want string
	}{
		{"Intro", "Some  text\nhere", "Intro\n\nSome text here"},
		{"", "only content", "only content"},
		{"only title", "   ", "only title"},
		{"", "", ""},
	}
	for _, tt := range tests {
		got := DocumentText(&models.Document{Title: tt.title, Content: tt.content})
		if got != tt.want {
			t.Errorf("DocumentText(%q, %q) = %q, want %q", tt.title, tt.content, got, tt.want)
		}
	}
}

func TestContentHash(t *testing.T) {
	a, b := ContentHash("abc"), ContentHash("abd")
	if a == b {
		t.Error("different texts share a hash")
	}
	if a != ContentHash("abc") || len(a) != 64 {
		t.Errorf("ContentHash(abc) = %q", a)
	}
}
