package mmap

import (
	"errors"
	"io"
	"math"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned by every accessor after Close.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrTooLarge is returned for files that do not fit the address space.
	ErrTooLarge = errors.New("mmap: file too large to map")
	// ErrOutOfRange is returned for ranges outside the mapping.
	ErrOutOfRange = errors.New("mmap: range outside mapping")
)

// Advice is an access hint for a range of the mapping.
type Advice int

const (
	// AdviceNormal resets a range to the kernel default.
	AdviceNormal Advice = iota
	// AdviceRandom disables readahead; row lookups touch scattered pages.
	AdviceRandom
	// AdviceSequential favors readahead for full scans such as checksum runs.
	AdviceSequential
	// AdviceWillNeed asks the kernel to prefetch the range.
	AdviceWillNeed
)

// Map is a read-only mapping of a whole file.
type Map struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path. An empty file yields an empty Map.
func Open(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Map{}, nil
	}
	if size > math.MaxInt {
		return nil, ErrTooLarge
	}

	data, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Map{data: data, unmap: unmap}, nil
}

// Close unmaps the file. It is idempotent.
func (m *Map) Close() error {
	if m.closed.Swap(true) || m.data == nil {
		return nil
	}
	return m.unmap(m.data)
}

// Len returns the mapped size in bytes.
func (m *Map) Len() int64 { return int64(len(m.data)) }

// Bytes returns the whole mapping, or nil after Close.
func (m *Map) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Slice returns the bytes [off, off+length) without copying.
func (m *Map) Slice(off, length int64) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || length < 0 || off > m.Len() || length > m.Len()-off {
		return nil, ErrOutOfRange
	}
	return m.data[off : off+length], nil
}

// ReadAt implements io.ReaderAt.
func (m *Map) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrOutOfRange
	}
	if off >= m.Len() {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Advise applies a to the pages covering [off, off+length). The range is
// widened to page boundaries.
func (m *Map) Advise(off, length int64, a Advice) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if length == 0 || m.data == nil {
		return nil
	}
	if off < 0 || length < 0 || off > m.Len() || length > m.Len()-off {
		return ErrOutOfRange
	}
	page := int64(os.Getpagesize())
	start := off / page * page
	return advise(m.data[start:off+length], a)
}
