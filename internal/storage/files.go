package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/pageindex/internal/fileid"
	"github.com/hyperjump/pageindex/internal/models"
)

// FileStorage is a read-only PrimaryStore over a directory of markdown pages.
// A page's ID is its slash-separated path relative to the root, its chapter is the parent
// directory, and its title is the first "# " heading or else the file name without extension.
type FileStorage struct {
	root       string
	extensions map[string]bool
}

// NewFileStorage returns a store over root, considering only files with the given extensions.
func NewFileStorage(root string, extensions []string) (*FileStorage, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("pages directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pages directory %s is not a directory", root)
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &FileStorage{root: root, extensions: exts}, nil
}

// Root returns the pages directory.
func (s *FileStorage) Root() string {
	return s.root
}

// Accepts reports whether path has one of the configured extensions.
func (s *FileStorage) Accepts(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// ListDocuments walks the root and returns every page in ascending id order.
// Hidden files and directories are skipped.
func (s *FileStorage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	var docs []*models.Document
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.Accepts(path) {
			return nil
		}
		id, err := fileid.FromPath(s.root, path)
		if err != nil {
			return err
		}
		doc, err := s.readPage(id, path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool { return models.LessID(docs[i].ID, docs[j].ID) })
	return docs, nil
}

// GetDocument reads the page with id.
func (s *FileStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	path, err := fileid.ToPath(s.root, id)
	if err != nil {
		return nil, err
	}
	if !s.Accepts(path) {
		return nil, fmt.Errorf("page %s: %w", id, models.ErrNotFound)
	}
	doc, err := s.readPage(id, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("page %s: %w", id, models.ErrNotFound)
	}
	return doc, err
}

func (s *FileStorage) readPage(id, path string) (*models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	title := markdownTitle(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &models.Document{
		ID:        id,
		Title:     title,
		Content:   content,
		ChapterID: fileid.ChapterOf(id),
		CreatedAt: info.ModTime(),
		UpdatedAt: info.ModTime(),
	}, nil
}

// markdownTitle returns the text of the first level-one heading, or "".
func markdownTitle(content string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// Close is a no-op for FileStorage.
func (s *FileStorage) Close() error {
	return nil
}
