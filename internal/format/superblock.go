package format

import (
	"encoding/binary"
	"errors"

	"github.com/hupe1980/rowtable/internal/hash"
)

const (
	// Magic identifies a row-table file ("RTB1" little-endian).
	Magic uint32 = 0x31425452
	// Version is the current format version.
	Version uint32 = 1

	// SuperblockSize is the size of one superblock slot.
	SuperblockSize = 64
	// DataStart is the first offset available to group regions.
	DataStart = 2 * SuperblockSize
	// Alignment is the alignment of every section start.
	Alignment = 64
)

var (
	// ErrInvalidMagic is returned when no superblock carries the table magic.
	ErrInvalidMagic = errors.New("format: not a row-table file")
	// ErrInvalidVersion is returned for a superblock written by a newer format.
	ErrInvalidVersion = errors.New("format: unsupported version")
	// ErrCorrupt is returned when checksums or offsets are inconsistent.
	ErrCorrupt = errors.New("format: corrupt file")
	// ErrNoCommit is returned for a file whose superblocks were never written.
	ErrNoCommit = errors.New("format: no committed directory")
	// ErrChecksum is returned when a data body does not match its checksum.
	ErrChecksum = errors.New("format: checksum mismatch")
)

// Superblock points at the directory of one commit.
type Superblock struct {
	Generation  uint64
	DirOffset   uint64
	DirLength   uint64
	DirChecksum uint32
}

// Slot returns the file offset of the superblock slot used by generation gen.
func Slot(gen uint64) int64 {
	return int64(gen%2) * SuperblockSize
}

// Encode serializes the superblock into a SuperblockSize buffer.
func (s *Superblock) Encode() []byte {
	buf := make([]byte, SuperblockSize)
	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint32(buf[4:], Version)
	binary.LittleEndian.PutUint64(buf[8:], s.Generation)
	binary.LittleEndian.PutUint64(buf[16:], s.DirOffset)
	binary.LittleEndian.PutUint64(buf[24:], s.DirLength)
	binary.LittleEndian.PutUint32(buf[32:], s.DirChecksum)
	binary.LittleEndian.PutUint32(buf[60:], hash.CRC32C(buf[:60]))
	return buf
}

// DecodeSuperblock parses one slot.
func DecodeSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < 4 || binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return nil, ErrInvalidMagic
	}
	if len(buf) < SuperblockSize {
		return nil, ErrCorrupt
	}
	if binary.LittleEndian.Uint32(buf[4:]) != Version {
		return nil, ErrInvalidVersion
	}
	if hash.CRC32C(buf[:60]) != binary.LittleEndian.Uint32(buf[60:]) {
		return nil, ErrCorrupt
	}
	return &Superblock{
		Generation:  binary.LittleEndian.Uint64(buf[8:]),
		DirOffset:   binary.LittleEndian.Uint64(buf[16:]),
		DirLength:   binary.LittleEndian.Uint64(buf[24:]),
		DirChecksum: binary.LittleEndian.Uint32(buf[32:]),
	}, nil
}

func isZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// Align rounds off up to the next multiple of Alignment.
func Align(off int64) int64 {
	return (off + Alignment - 1) &^ (Alignment - 1)
}
