// Package vector provides the document vector store: keyed embedding storage with exact
// cosine-similarity nearest-neighbor queries.
package vector

import (
	"context"

	"github.com/hyperjump/pageindex/internal/models"
)

// Store types accepted by NewStore.
const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
)

// Store holds at most one embedding per document id. All embeddings in a store share one
// dimension, established by the first record and released when the store becomes empty.
//
// Writes for the same id are serialized; writes for different ids may run concurrently.
// Every read observes a consistent snapshot.
type Store interface {
	// Upsert inserts or replaces the record for documentID.
	Upsert(ctx context.Context, documentID string, embedding []float32, meta models.RecordMetadata) error
	// Get returns the record for documentID, or an error wrapping models.ErrNotFound.
	Get(ctx context.Context, documentID string) (*models.VectorRecord, error)
	// Delete removes the record for documentID. Deleting an absent id is not an error.
	Delete(ctx context.Context, documentID string) error
	// Query returns up to topK records by descending cosine similarity, ties by ascending id.
	Query(ctx context.Context, embedding []float32, topK int) ([]*Match, error)
	Stats(ctx context.Context) (models.Stats, error)
	// IDs returns all document ids in ascending order.
	IDs(ctx context.Context) ([]string, error)
	Type() string
	Close() error
}

// Match is a single query hit.
type Match struct {
	DocumentID string
	Score      float64 // cosine similarity in [-1, 1]
	Metadata   models.RecordMetadata
}
