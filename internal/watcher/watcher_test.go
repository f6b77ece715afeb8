package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/pageindex/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []models.DocumentEvent
}

func (r *recorder) handle(_ context.Context, ev models.DocumentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) find(id string, typ models.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.DocumentID == id && ev.Type == typ {
			return true
		}
	}
	return false
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.DocumentID)
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func markdownOnly(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

func startWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w := New(dir, true, rec.handle, WithDebounce(50*time.Millisecond), WithFilter(markdownOnly))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_CreateUpdateDelete(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	page := filepath.Join(dir, "intro.md")
	if err := writeFile(page, "# Intro"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.find("intro.md", models.EventCreated) })

	if err := writeFile(page, "# Intro\n\nmore"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.find("intro.md", models.EventUpdated) })

	if err := os.Remove(page); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.find("intro.md", models.EventDeleted) })
}

func TestWatcher_DebounceCollapsesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	page := filepath.Join(dir, "busy.md")
	for i := 0; i < 5; i++ {
		if err := writeFile(page, strings.Repeat("x", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return rec.find("busy.md", models.EventCreated) })
	time.Sleep(150 * time.Millisecond)
	if ids := rec.ids(); len(ids) != 1 {
		t.Errorf("events for busy.md = %v, want one", ids)
	}
}

func TestWatcher_FiltersAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	if err := writeFile(filepath.Join(dir, "notes.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, ".draft.md"), "skip"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "keep.md"), "keep"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.find("keep.md", models.EventCreated) })
	time.Sleep(150 * time.Millisecond)
	for _, id := range rec.ids() {
		if id != "keep.md" {
			t.Errorf("unexpected event for %q", id)
		}
	}
}

func TestWatcher_NewDirectoryUsesChapterIDs(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	nested := filepath.Join(dir, "chapter-1", "part-a")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.md"), "deep content"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.find("chapter-1/part-a/deep.md", models.EventCreated) })
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "pages", "here")
	w := New(root, true, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
	if w.Root() != root {
		t.Errorf("Root() = %q, want %q", w.Root(), root)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New(t.TempDir(), false, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.md", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/p/a.md", false},
		{"/p/.a.md", true},
		{"/p/.git/config", true},
		{"/p/ch/a.md", false},
		{"/p", false},
	}
	for _, tt := range tests {
		if got := hidden("/p", tt.path); got != tt.want {
			t.Errorf("hidden(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
