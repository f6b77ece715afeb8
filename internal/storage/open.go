package storage

import (
	"fmt"

	"github.com/hyperjump/pageindex/internal/config"
)

// Open creates the primary store selected by cfg.Storage.PrimaryKind.
func Open(cfg *config.Config) (PrimaryStore, error) {
	switch cfg.Storage.PrimaryKind {
	case KindSQLite, "":
		return NewSQLiteStorage(cfg.Storage.DatabasePath)
	case KindFiles:
		return NewFileStorage(cfg.Storage.PagesDir, cfg.Watch.Extensions)
	default:
		return nil, fmt.Errorf("unknown primary store kind: %s (supported: sqlite, files)", cfg.Storage.PrimaryKind)
	}
}
