package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/pageindex/internal/models"
)

// record is immutable once stored; replacing a document swaps the pointer.
type record struct {
	id        string
	embedding []float32
	norm      float64
	meta      models.RecordMetadata
}

// MemoryStore is an in-memory Store using brute-force cosine search over precomputed norms.
// With a snapshot path it loads on open and saves on Close.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[string]*record
	dimension    int
	lastUpdated  time.Time
	snapshotPath string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSnapshot makes the store persist to path: NewMemoryStore loads it when present, Close saves it.
func WithSnapshot(path string) MemoryOption {
	return func(m *MemoryStore) {
		m.snapshotPath = path
	}
}

// NewMemoryStore creates an empty store, or one loaded from the snapshot path if configured.
func NewMemoryStore(opts ...MemoryOption) (*MemoryStore, error) {
	m := &MemoryStore{records: make(map[string]*record)}
	for _, opt := range opts {
		opt(m)
	}
	if m.snapshotPath != "" {
		if err := m.Load(m.snapshotPath); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Type returns the store type identifier.
func (m *MemoryStore) Type() string {
	return TypeMemory
}

func newRecord(documentID string, embedding []float32, meta models.RecordMetadata) (*record, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is empty", models.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: embedding is empty", models.ErrInvalidInput)
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	return &record{id: documentID, embedding: vec, norm: L2Norm(vec), meta: meta}, nil
}

// Upsert inserts or replaces the record for documentID.
func (m *MemoryStore) Upsert(ctx context.Context, documentID string, embedding []float32, meta models.RecordMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := newRecord(documentID, embedding, meta)
	if err != nil {
		return err
	}
	_, _, err = m.put(rec)
	return err
}

// put stores rec and returns the record it replaced, if any.
func (m *MemoryStore) put(rec *record) (*record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) > 0 && len(rec.embedding) != m.dimension {
		return nil, false, fmt.Errorf("%w: got %d, store has %d", models.ErrDimensionMismatch, len(rec.embedding), m.dimension)
	}
	prev, existed := m.records[rec.id]
	m.records[rec.id] = rec
	m.dimension = len(rec.embedding)
	m.lastUpdated = time.Now()
	return prev, existed, nil
}

// Get returns a copy of the record for documentID.
func (m *MemoryStore) Get(ctx context.Context, documentID string) (*models.VectorRecord, error) {
	m.mu.RLock()
	rec, ok := m.records[documentID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vector %s: %w", documentID, models.ErrNotFound)
	}
	vec := make([]float32, len(rec.embedding))
	copy(vec, rec.embedding)
	return &models.VectorRecord{DocumentID: rec.id, Embedding: vec, Metadata: rec.meta}, nil
}

// Delete removes the record for documentID.
func (m *MemoryStore) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if documentID == "" {
		return fmt.Errorf("%w: document id is empty", models.ErrInvalidInput)
	}
	m.remove(documentID)
	return nil
}

func (m *MemoryStore) remove(documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[documentID]; !ok {
		return
	}
	delete(m.records, documentID)
	if len(m.records) == 0 {
		m.dimension = 0
	}
	m.lastUpdated = time.Now()
}

// restore puts back prev, or removes id when there was no previous record.
func (m *MemoryStore) restore(id string, prev *record, existed bool) {
	if !existed {
		m.remove(id)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = prev
	m.dimension = len(prev.embedding)
}

// Query returns up to topK records by descending cosine similarity, ties by ascending id.
func (m *MemoryStore) Query(ctx context.Context, embedding []float32, topK int) ([]*Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrInvalidInput, topK)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	if len(m.records) == 0 {
		m.mu.RUnlock()
		return []*Match{}, nil
	}
	if len(embedding) != m.dimension {
		dim := m.dimension
		m.mu.RUnlock()
		return nil, fmt.Errorf("%w: query has %d, store has %d", models.ErrDimensionMismatch, len(embedding), dim)
	}
	snapshot := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		snapshot = append(snapshot, rec)
	}
	m.mu.RUnlock()

	qn := L2Norm(embedding)
	matches := make([]*Match, len(snapshot))
	for i, rec := range snapshot {
		matches[i] = &Match{
			DocumentID: rec.id,
			Score:      cosineWithNorms(embedding, qn, rec.embedding, rec.norm),
			Metadata:   rec.meta,
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return models.LessID(matches[i].DocumentID, matches[j].DocumentID)
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Stats returns the record count, dimension, and last mutation time.
func (m *MemoryStore) Stats(ctx context.Context) (models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.Stats{
		Count:       len(m.records),
		Dimension:   m.dimension,
		LastUpdated: m.lastUpdated,
	}, nil
}

// IDs returns all document ids in ascending order.
func (m *MemoryStore) IDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return models.LessID(ids[i], ids[j]) })
	return ids, nil
}

// Close saves the snapshot when the store was opened with one.
func (m *MemoryStore) Close() error {
	if m.snapshotPath == "" {
		return nil
	}
	return m.Save(m.snapshotPath)
}

// Snapshot format, little-endian:
//
//	magic "PIVS", version uint16, dimension uint32, count uint32, lastUpdated int64 (unix nanos)
//	per record: id, title, chapter, hash (each uint32 length + bytes), indexedAt int64, vector (dimension float32)
const (
	snapshotMagic   = "PIVS"
	snapshotVersion = uint16(1)
)

// Save writes all records to path atomically. The parent directory is created if needed.
func (m *MemoryStore) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	m.mu.RLock()
	records := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	dim, lastUpdated := m.dimension, m.lastUpdated
	m.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return models.LessID(records[i].id, records[j].id) })

	w := bufio.NewWriter(tmp)
	if err := writeSnapshot(w, dim, lastUpdated, records); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(w io.Writer, dim int, lastUpdated time.Time, records []*record) error {
	var lu int64
	if !lastUpdated.IsZero() {
		lu = lastUpdated.UnixNano()
	}
	header := []any{[]byte(snapshotMagic), snapshotVersion, uint32(dim), uint32(len(records)), lu}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write snapshot header: %w", err)
		}
	}
	for _, rec := range records {
		for _, s := range []string{rec.id, rec.meta.Title, rec.meta.ChapterID, rec.meta.ContentHash} {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
		var indexedAt int64
		if !rec.meta.IndexedAt.IsZero() {
			indexedAt = rec.meta.IndexedAt.UnixNano()
		}
		if err := binary.Write(w, binary.LittleEndian, indexedAt); err != nil {
			return fmt.Errorf("write indexed_at: %w", err)
		}
		if _, err := w.Write(EncodeEmbedding(rec.embedding)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("write string length: %w", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

// Load reads path and replaces the in-memory contents.
// If the file does not exist, no error is returned and the store is unchanged.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	records, dim, lastUpdated, err := readSnapshot(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.dimension = dim
	if len(records) == 0 {
		m.dimension = 0
	}
	m.lastUpdated = lastUpdated
	return nil
}

func readSnapshot(r io.Reader) (map[string]*record, int, time.Time, error) {
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, 0, time.Time{}, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != snapshotMagic {
		return nil, 0, time.Time{}, fmt.Errorf("not a vector snapshot")
	}
	var version uint16
	var dim, n uint32
	var lu int64
	for _, v := range []any{&version, &dim, &n, &lu} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, 0, time.Time{}, fmt.Errorf("read header: %w", err)
		}
	}
	if version != snapshotVersion {
		return nil, 0, time.Time{}, fmt.Errorf("unsupported snapshot version %d", version)
	}
	var lastUpd time.Time
	if lu != 0 {
		lastUpd = time.Unix(0, lu)
	}
	records := make(map[string]*record, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var fields [4]string
		for j := range fields {
			s, err := readString(r)
			if err != nil {
				return nil, 0, time.Time{}, err
			}
			fields[j] = s
		}
		var indexedAt int64
		if err := binary.Read(r, binary.LittleEndian, &indexedAt); err != nil {
			return nil, 0, time.Time{}, fmt.Errorf("read indexed_at: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, time.Time{}, fmt.Errorf("read vector: %w", err)
		}
		vec, err := DecodeEmbedding(buf)
		if err != nil {
			return nil, 0, time.Time{}, err
		}
		meta := models.RecordMetadata{Title: fields[1], ChapterID: fields[2], ContentHash: fields[3]}
		if indexedAt != 0 {
			meta.IndexedAt = time.Unix(0, indexedAt)
		}
		records[fields[0]] = &record{id: fields[0], embedding: vec, norm: L2Norm(vec), meta: meta}
	}
	return records, int(dim), lastUpd, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b), nil
}
