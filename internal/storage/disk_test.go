package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "pages.db")
	writeFile(t, db, "hello")

	got, err := DiskUsageBytes(db)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("single file: got %d bytes, want 5", got)
	}

	writeFile(t, db+"-wal", "wal")
	got, _ = DiskUsageBytes(db)
	if got != 8 {
		t.Errorf("file with wal sidecar: got %d bytes, want 8", got)
	}

	sub := filepath.Join(dir, "pages")
	writeFile(t, filepath.Join(sub, "a.md"), "ab")
	writeFile(t, filepath.Join(sub, "ch", "b.md"), "c")
	got, err = DiskUsageBytes(sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("dir: got %d bytes, want 3", got)
	}

	got, err = DiskUsageBytes(db, filepath.Join(dir, "nonexistent"), "", ":memory:", sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 11 {
		t.Errorf("mixed paths: got %d bytes, want 11", got)
	}
}
