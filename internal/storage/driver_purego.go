//go:build !cgo
// +build !cgo

package storage

import _ "modernc.org/sqlite"

// DriverName is the database/sql driver used for SQLite databases. Without CGO the pure-Go
// driver is used.
const DriverName = "sqlite"

// dsn applies per-connection pragmas through modernc.org/sqlite _pragma parameters.
func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
