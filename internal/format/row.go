package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// EncodeRow writes values into dst as little-endian float32.
// dst must hold at least 4*len(values) bytes.
func EncodeRow(dst []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// DecodeRow reads len(dst) little-endian float32 values from src.
func DecodeRow(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

// EncodeBitmap serializes the written-row set.
func EncodeBitmap(bm *roaring.Bitmap) ([]byte, error) {
	bm.RunOptimize()
	return bm.ToBytes()
}

// DecodeBitmap parses a written-row set. An empty section yields an empty set.
func DecodeBitmap(buf []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if len(buf) == 0 {
		return bm, nil
	}
	if _, err := bm.ReadFrom(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("%w: bitmap: %w", ErrCorrupt, err)
	}
	return bm, nil
}
