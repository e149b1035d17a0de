package storage

import (
	"errors"
	"io/fs"
	"os"
)

// sqliteSidecars are the files SQLite keeps next to a database.
var sqliteSidecars = []string{"-wal", "-shm", "-journal"}

// DiskUsageBytes returns the combined size of the given cache files, including any
// SQLite sidecar files next to them. Empty and missing paths count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		for _, name := range append([]string{p}, sidecarPaths(p)...) {
			n, err := fileSize(name)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func sidecarPaths(p string) []string {
	out := make([]string, len(sqliteSidecars))
	for i, s := range sqliteSidecars {
		out[i] = p + s
	}
	return out
}

func fileSize(name string) (int64, error) {
	info, err := os.Stat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 0, nil
	case err != nil:
		return 0, err
	case info.IsDir():
		return 0, nil
	}
	return info.Size(), nil
}
