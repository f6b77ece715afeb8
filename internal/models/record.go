package models

import "time"

// RecordMetadata is the denormalized snapshot stored next to an embedding.
type RecordMetadata struct {
	Title       string    `json:"title"`
	ChapterID   string    `json:"chapter_id,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// VectorRecord is one embedding per document in the vector store.
type VectorRecord struct {
	DocumentID string         `json:"document_id"`
	Embedding  []float32      `json:"-"`
	Metadata   RecordMetadata `json:"metadata"`
}

// Stats is a read-only snapshot of a vector store.
type Stats struct {
	Count       int       `json:"count"`
	Dimension   int       `json:"dimension"`
	LastUpdated time.Time `json:"last_updated"`
}
