package utils

import (
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// LocalFS is the host filesystem. It resolves every path from the root, so
// callers hand it absolute paths (see AbsPath).
func LocalFS() billy.Filesystem {
	return osfs.New("/", osfs.WithBoundOS())
}

// AbsPath makes path absolute against the working directory. Empty paths stay empty.
func AbsPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
