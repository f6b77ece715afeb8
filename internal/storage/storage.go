// Package storage provides the primary page stores the indexer reads from.
package storage

import (
	"context"

	"github.com/hyperjump/pageindex/internal/models"
)

// PrimaryStore is the authoritative source of pages. The indexer never mutates it.
type PrimaryStore interface {
	// ListDocuments returns every page. Order is unspecified.
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	// GetDocument returns the page with id, or an error wrapping models.ErrNotFound.
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	Close() error
}

// Primary store kinds accepted by Open.
const (
	KindSQLite = "sqlite"
	KindFiles  = "files"
)
