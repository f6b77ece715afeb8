package vector

import (
	"context"
	"fmt"
)

// NewStore creates a vector store of the given type.
// "memory" (default) keeps records in memory and, when path is set, snapshots them to path on
// Close and reloads them on open. "sqlite" persists every write to the database at path.
func NewStore(ctx context.Context, storeType, path string) (Store, error) {
	switch storeType {
	case TypeMemory, "":
		var opts []MemoryOption
		if path != "" {
			opts = append(opts, WithSnapshot(path))
		}
		m, err := NewMemoryStore(opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	case TypeSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite vector store requires a path")
		}
		s, err := NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store type: %s (supported: memory, sqlite)", storeType)
	}
}
