//go:build cgo
// +build cgo

package storage

import _ "github.com/mattn/go-sqlite3"

// DriverName is the database/sql driver used for SQLite databases.
const DriverName = "sqlite3"

// dsn applies per-connection pragmas through mattn/go-sqlite3 connection parameters.
func dsn(path string) string {
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}
