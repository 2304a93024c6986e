package fs

import (
	"io"
	"os"
)

// File is an open table file. Writers only use positioned I/O, so a File
// has no cursor semantics to honor.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// FileSystem opens, inspects and removes table files.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
}

// LocalFS is the FileSystem of the host, backed by package os.
type LocalFS struct{}

// OpenFile implements FileSystem.
func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat implements FileSystem.
func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

// MkdirAll implements FileSystem.
func (LocalFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

// Remove implements FileSystem.
func (LocalFS) Remove(name string) error { return os.Remove(name) }

// Default is the FileSystem used when none is configured.
var Default FileSystem = LocalFS{}
