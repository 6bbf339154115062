package store

import (
	"io/fs"
	"os"
)

// Backend is the byte-level storage the facade delegates to. Not-found is
// signalled with an error matching fs.ErrNotExist; everything else is a
// genuine I/O failure.
type Backend interface {
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string) error
	ReadDir(path string) ([]fs.DirEntry, error)
}

// OSBackend implements Backend on the local filesystem.
type OSBackend struct{}

func (OSBackend) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (OSBackend) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSBackend) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (OSBackend) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}
