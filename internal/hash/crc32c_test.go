package hash

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// Known answer for the Castagnoli polynomial.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))

	data := []byte("row1row2row3col1col2")
	assert.Equal(t, CRC32C(data), UpdateCRC32C(UpdateCRC32C(0, data[:3]), data[3:]))
	assert.NotEqual(t, CRC32C(data), CRC32C(data[1:]))
}

func TestReadCRC32C(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 1000)

	sum, n, err := ReadCRC32C(iotest.OneByteReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, CRC32C(data), sum)

	boom := errors.New("boom")
	_, n, err = ReadCRC32C(io.MultiReader(bytes.NewReader(data[:10]), iotest.ErrReader(boom)))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(10), n)
}
