package format

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/hupe1980/rowtable/internal/compress"
	"github.com/hupe1980/rowtable/internal/hash"
)

// EncodeNames serializes an ordered name list.
func EncodeNames(names []string) []byte {
	size := binary.MaxVarintLen64
	for _, n := range names {
		size += binary.MaxVarintLen64 + len(n)
	}
	buf := make([]byte, 0, size)
	buf = binary.AppendUvarint(buf, uint64(len(names)))
	for _, n := range names {
		buf = binary.AppendUvarint(buf, uint64(len(n)))
		buf = append(buf, n...)
	}
	return buf
}

// DecodeNames parses a list produced by EncodeNames.
func DecodeNames(buf []byte) ([]string, error) {
	c := cursor{buf: buf}
	count := c.uvarint()
	if c.err != nil {
		return nil, c.err
	}
	// Every name takes at least one length byte.
	if count > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: name count %d exceeds section", ErrCorrupt, count)
	}
	names := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		s := c.string()
		if c.err != nil {
			return nil, c.err
		}
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: name %d is not valid UTF-8", ErrCorrupt, i)
		}
		names = append(names, s)
	}
	if c.off != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes after names", ErrCorrupt, len(buf)-c.off)
	}
	return names, nil
}

// EncodeNameSection serializes and compresses a name list.
func EncodeNameSection(names []string, t compress.Type) ([]byte, error) {
	return compress.Encode(EncodeNames(names), t)
}

// DecodeNameSection reverses EncodeNameSection.
func DecodeNameSection(section []byte, t compress.Type) ([]string, error) {
	raw, err := compress.Decode(section, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return DecodeNames(raw)
}

// CheckSection compares a stored section with the CRC32C recorded for it.
func CheckSection(section []byte, want uint32) error {
	if got := hash.CRC32C(section); got != want {
		return fmt.Errorf("%w: section checksum %08x, want %08x", ErrChecksum, got, want)
	}
	return nil
}
