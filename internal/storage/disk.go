package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// sqliteSidecars are files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"-wal", "-shm"}

// DiskUsageBytes sums the on-disk size of the configured store paths: SQLite databases with their
// -wal and -shm sidecars, snapshot files, and page directories. Empty, ":memory:" and missing
// paths count as 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" || p == ":memory:" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
		for _, suffix := range sqliteSidecars {
			side, err := pathSize(p + suffix)
			if err != nil {
				return 0, err
			}
			total += side
		}
	}
	return total, nil
}

// pathSize returns the size of a file or the recursive size of a directory; 0 if p does not exist.
func pathSize(p string) (int64, error) {
	var total int64
	err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
