package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/pageindex/internal/models"
)

// SQLiteStorage is a PrimaryStore backed by a SQLite pages table. It also exposes the write
// operations used by the import command.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		chapter_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_chapter_id ON pages(chapter_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a page.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is empty", models.ErrInvalidInput)
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (id, title, content, chapter_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Content, doc.ChapterID, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create page %s: %w", doc.ID, err)
	}
	return nil
}

// UpsertDocument inserts a page or replaces its title, content and chapter.
// It reports whether the page was newly created.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) (bool, error) {
	if doc.ID == "" {
		return false, fmt.Errorf("%w: document id is empty", models.ErrInvalidInput)
	}
	_, err := s.GetDocument(ctx, doc.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return true, s.CreateDocument(ctx, doc)
	case err != nil:
		return false, err
	}
	return false, s.UpdateDocument(ctx, doc)
}

// GetDocument returns a page by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, chapter_id, created_at, updated_at
		 FROM pages WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ChapterID, &doc.CreatedAt, &doc.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page %s: %w", id, err)
	}
	return &doc, nil
}

// UpdateDocument updates an existing page.
func (s *SQLiteStorage) UpdateDocument(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE pages SET title = ?, content = ?, chapter_id = ?, updated_at = ?
		 WHERE id = ?`,
		doc.Title, doc.Content, doc.ChapterID, doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update page %s: %w", doc.ID, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("page %s: %w", doc.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a page by ID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete page %s: %w", id, err)
	}
	return nil
}

// ListDocuments returns every page in ascending id order.
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, chapter_id, created_at, updated_at FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ChapterID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return models.LessID(docs[i].ID, docs[j].ID) })
	return docs, nil
}

// CountDocuments returns the total number of pages.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
