// Package fileid maps markdown page files to stable document IDs and back.
package fileid

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/hyperjump/pageindex/internal/models"
)

// FromPath returns the document ID for the file at p under root: the slash-separated path
// relative to root. The same file always yields the same ID on every platform.
func FromPath(root, p string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("%w: %s is not under %s", models.ErrInvalidInput, p, root)
	}
	id := filepath.ToSlash(rel)
	if id == "." || id == ".." || strings.HasPrefix(id, "../") {
		return "", fmt.Errorf("%w: %s is not under %s", models.ErrInvalidInput, p, root)
	}
	return id, nil
}

// ToPath resolves a document ID back to a file path under root. IDs that would escape root
// are rejected.
func ToPath(root, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: document id is empty", models.ErrInvalidInput)
	}
	clean := path.Clean(id)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") || clean != id {
		return "", fmt.Errorf("%w: invalid page id %q", models.ErrInvalidInput, id)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// ChapterOf returns the chapter of a page ID: its parent directory, or "" for top-level pages.
func ChapterOf(id string) string {
	dir := path.Dir(id)
	if dir == "." {
		return ""
	}
	return dir
}
