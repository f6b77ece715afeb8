package vector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hyperjump/pageindex/internal/keylock"
	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/internal/storage"
)

// SQLiteStore is a durable Store. Every write goes to the vectors table and to an embedded
// MemoryStore that answers queries; all rows are loaded at open.
type SQLiteStore struct {
	db    *sql.DB
	mem   *MemoryStore
	locks *keylock.Striped
}

// NewSQLiteStore opens or creates the vector database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	s := &SQLiteStore{db: db, locks: keylock.New(0)}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %v", models.ErrStore, err)
	}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS vectors (
		document_id TEXT PRIMARY KEY,
		embedding BLOB NOT NULL,
		dimension INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		chapter_id TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		indexed_at INTEGER NOT NULL DEFAULT 0
	);`)
	return err
}

func (s *SQLiteStore) load(ctx context.Context) error {
	mem, err := NewMemoryStore()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, embedding, title, chapter_id, content_hash, indexed_at FROM vectors`)
	if err != nil {
		return fmt.Errorf("%w: failed to load vectors: %v", models.ErrStore, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id        string
			blob      []byte
			meta      models.RecordMetadata
			indexedAt int64
		)
		if err := rows.Scan(&id, &blob, &meta.Title, &meta.ChapterID, &meta.ContentHash, &indexedAt); err != nil {
			return fmt.Errorf("%w: failed to scan vector: %v", models.ErrStore, err)
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return fmt.Errorf("%w: vector %s: %v", models.ErrStore, id, err)
		}
		if indexedAt != 0 {
			meta.IndexedAt = time.Unix(0, indexedAt)
		}
		rec, err := newRecord(id, vec, meta)
		if err != nil {
			return fmt.Errorf("%w: vector %s: %v", models.ErrStore, id, err)
		}
		if _, _, err := mem.put(rec); err != nil {
			return fmt.Errorf("%w: vector %s: %v", models.ErrStore, id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	s.mem = mem
	return nil
}

// Type returns the store type identifier.
func (s *SQLiteStore) Type() string {
	return TypeSQLite
}

// Upsert writes the record to the in-memory index first, which validates the dimension
// atomically, then persists it. A failed write restores the previous in-memory record.
func (s *SQLiteStore) Upsert(ctx context.Context, documentID string, embedding []float32, meta models.RecordMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := newRecord(documentID, embedding, meta)
	if err != nil {
		return err
	}

	s.locks.Lock(documentID)
	defer s.locks.Unlock(documentID)

	prev, existed, err := s.mem.put(rec)
	if err != nil {
		return err
	}
	var indexedAt int64
	if !meta.IndexedAt.IsZero() {
		indexedAt = meta.IndexedAt.UnixNano()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vectors (document_id, embedding, dimension, title, chapter_id, content_hash, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
		   embedding = excluded.embedding,
		   dimension = excluded.dimension,
		   title = excluded.title,
		   chapter_id = excluded.chapter_id,
		   content_hash = excluded.content_hash,
		   indexed_at = excluded.indexed_at`,
		documentID, EncodeEmbedding(rec.embedding), len(rec.embedding),
		meta.Title, meta.ChapterID, meta.ContentHash, indexedAt,
	)
	if err != nil {
		s.mem.restore(documentID, prev, existed)
		return fmt.Errorf("%w: upsert %s: %v", models.ErrStore, documentID, err)
	}
	return nil
}

// Delete removes the record for documentID from the table and the in-memory index.
func (s *SQLiteStore) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if documentID == "" {
		return fmt.Errorf("%w: document id is empty", models.ErrInvalidInput)
	}

	s.locks.Lock(documentID)
	defer s.locks.Unlock(documentID)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("%w: delete %s: %v", models.ErrStore, documentID, err)
	}
	s.mem.remove(documentID)
	return nil
}

// Get reads the record from the in-memory index.
func (s *SQLiteStore) Get(ctx context.Context, documentID string) (*models.VectorRecord, error) {
	return s.mem.Get(ctx, documentID)
}

// Query searches the in-memory index.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topK int) ([]*Match, error) {
	return s.mem.Query(ctx, embedding, topK)
}

// Stats returns the in-memory index stats.
func (s *SQLiteStore) Stats(ctx context.Context) (models.Stats, error) {
	return s.mem.Stats(ctx)
}

// IDs returns all document ids in ascending order.
func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
	return s.mem.IDs(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
