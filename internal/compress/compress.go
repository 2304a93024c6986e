// Package compress implements the block codec used for table name sections.
//
// Every block starts with an 8-byte header:
//
//	[raw size uint32][stored size uint32][payload...]
//
// A stored size of zero means the payload is kept raw, which happens for
// [None] and whenever compression saves less than ten percent.
package compress

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the block compression algorithm.
type Type uint8

const (
	// None stores blocks raw.
	None Type = 0
	// LZ4 favors encode/decode speed.
	LZ4 Type = 1
	// ZSTD favors ratio; good for large row indexes.
	ZSTD Type = 2
)

// HeaderSize is the size of the block header in bytes.
const HeaderSize = 8

// maxLZ4Ratio bounds the expansion of an LZ4 block: a single match byte
// extends a run by at most 255 bytes.
const maxLZ4Ratio = 255

var (
	// ErrCorrupt is returned when a block header disagrees with its payload.
	ErrCorrupt = errors.New("compress: corrupt block")
	// ErrUnknownType is returned for an unsupported compression type.
	ErrUnknownType = errors.New("compress: unknown type")
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known compression type.
func (t Type) Valid() bool {
	return t <= ZSTD
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(math.MaxUint32))
}

// Encode returns data wrapped in a block, compressed with t when it pays off.
func Encode(data []byte, t Type) ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("compress: block of %d bytes too large", len(data))
	}

	var compressed []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n] // n == 0: incompressible
	case ZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, HeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[HeaderSize:], data)
		return out, nil
	}

	out := make([]byte, HeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[HeaderSize:], compressed)
	return out, nil
}

// Decode unwraps a block produced by Encode with the same type.
func Decode(block []byte, t Type) ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if len(block) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrCorrupt, len(block))
	}

	rawSize := uint64(binary.LittleEndian.Uint32(block[0:]))
	storedSize := uint64(binary.LittleEndian.Uint32(block[4:]))
	payload := block[HeaderSize:]

	if storedSize == 0 {
		if uint64(len(payload)) != rawSize {
			return nil, fmt.Errorf("%w: raw payload is %d bytes, header says %d", ErrCorrupt, len(payload), rawSize)
		}
		out := make([]byte, rawSize)
		copy(out, payload)
		return out, nil
	}
	if uint64(len(payload)) != storedSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(payload), storedSize)
	}

	switch t {
	case LZ4:
		if rawSize > storedSize*maxLZ4Ratio {
			return nil, fmt.Errorf("%w: raw size %d exceeds lz4 bound for %d bytes", ErrCorrupt, rawSize, storedSize)
		}
		result := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, result)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint64(n) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return result, nil
	case ZSTD:
		return decodeZstd(payload, rawSize)
	default:
		return nil, fmt.Errorf("%w: compressed payload with type none", ErrCorrupt)
	}
}

// decodeZstd streams payload so memory grows with the decoded output, never
// with the size claimed by the header.
func decodeZstd(payload []byte, rawSize uint64) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	defer zstdDecoderPool.Put(dec)
	if err := dec.Reset(bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	decoded, err := io.ReadAll(io.LimitReader(dec, int64(rawSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if uint64(len(decoded)) != rawSize {
		return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
	}
	return decoded, nil
}
