package format

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/rowtable/internal/hash"
)

// SyncWriterAt is the subset of a file needed to commit a directory.
type SyncWriterAt interface {
	io.WriterAt
	Sync() error
}

// Commit appends dir at the aligned offset end, then points the next
// superblock slot at it. With durable set, the directory is synced before
// the superblock is written and the superblock is synced after.
// It returns the new end of file.
func Commit(w SyncWriterAt, dir *Directory, end int64, durable bool) (int64, error) {
	if end < DataStart {
		end = DataStart
	}
	off := Align(end)
	body := dir.Encode()

	if _, err := w.WriteAt(body, off); err != nil {
		return 0, fmt.Errorf("write directory: %w", err)
	}
	if durable {
		if err := w.Sync(); err != nil {
			return 0, fmt.Errorf("sync directory: %w", err)
		}
	}

	sb := Superblock{
		Generation:  dir.Generation + 1,
		DirOffset:   uint64(off),
		DirLength:   uint64(len(body)),
		DirChecksum: hash.CRC32C(body),
	}
	if _, err := w.WriteAt(sb.Encode(), Slot(sb.Generation)); err != nil {
		return 0, fmt.Errorf("write superblock: %w", err)
	}
	if durable {
		if err := w.Sync(); err != nil {
			return 0, fmt.Errorf("sync superblock: %w", err)
		}
	}
	dir.Generation = sb.Generation
	return off + int64(len(body)), nil
}

// LoadDirectory reads the newest valid directory from a file of size bytes.
//
// It returns ErrNoCommit when both slots are zero, ErrInvalidMagic when no
// slot carries the table magic, and ErrCorrupt when a slot carries the magic
// but no slot points at an intact directory.
func LoadDirectory(r io.ReaderAt, size int64) (*Directory, error) {
	if size == 0 {
		return nil, ErrNoCommit
	}

	head := make([]byte, DataStart)
	n, err := r.ReadAt(head[:min(size, DataStart)], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]

	var (
		best      *Directory
		sawMagic  bool
		allZero   = true
		lastError error
	)
	for slot := 0; slot < 2; slot++ {
		start := slot * SuperblockSize
		if start >= len(head) {
			continue
		}
		raw := head[start:min(len(head), start+SuperblockSize)]
		if isZero(raw) {
			continue
		}
		allZero = false

		sb, err := DecodeSuperblock(raw)
		if errors.Is(err, ErrInvalidMagic) {
			continue
		}
		sawMagic = true
		if err != nil {
			lastError = err
			continue
		}

		dir, err := readDirectory(r, size, sb)
		if err != nil {
			lastError = err
			continue
		}
		if best == nil || dir.Generation > best.Generation {
			best = dir
		}
	}

	switch {
	case best != nil:
		return best, nil
	case allZero:
		return nil, ErrNoCommit
	case !sawMagic:
		return nil, ErrInvalidMagic
	case errors.Is(lastError, ErrCorrupt) || errors.Is(lastError, ErrInvalidVersion):
		return nil, lastError
	default:
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, lastError)
	}
}

func readDirectory(r io.ReaderAt, size int64, sb *Superblock) (*Directory, error) {
	if sb.DirOffset < DataStart || sb.DirOffset+sb.DirLength < sb.DirOffset ||
		sb.DirOffset+sb.DirLength > uint64(size) {
		return nil, fmt.Errorf("%w: directory [%d,+%d) outside file of %d bytes",
			ErrCorrupt, sb.DirOffset, sb.DirLength, size)
	}
	buf := make([]byte, sb.DirLength)
	if _, err := r.ReadAt(buf, int64(sb.DirOffset)); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if hash.CRC32C(buf) != sb.DirChecksum {
		return nil, fmt.Errorf("%w: directory checksum mismatch", ErrCorrupt)
	}
	dir, err := DecodeDirectory(buf, size)
	if err != nil {
		return nil, err
	}
	dir.Generation = sb.Generation
	return dir, nil
}

// IsBlank reports whether the first size bytes of r are all zero, which is
// all an interrupted first commit can leave behind.
func IsBlank(r io.ReaderAt, size int64) (bool, error) {
	buf := make([]byte, min(size, blankChunk))
	for off := int64(0); off < size; {
		n := min(int64(len(buf)), size-off)
		if _, err := r.ReadAt(buf[:n], off); err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		if !isZero(buf[:n]) {
			return false, nil
		}
		off += n
	}
	return true, nil
}

const blankChunk = 64 << 10
