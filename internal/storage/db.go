package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// OpenDB opens or creates the SQLite database at dbPath in WAL mode with a busy timeout on
// every connection. Parent directories are created if they do not exist. ":memory:" opens a
// private in-memory database.
func OpenDB(dbPath string) (*sql.DB, error) {
	if dbPath == ":memory:" {
		db, err := sql.Open(DriverName, dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
		return db, nil
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(DriverName, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
