package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "x/a", data))
	data[0] = 'z'

	w, err := store.Create(ctx, "x/b")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = store.Create(ctx, "y/c")
	require.NoError(t, err)
	_, err = w.Write([]byte("dropped"))
	require.NoError(t, err)
	require.NoError(t, w.(Aborter).Abort())
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/a", "x/b"}, names)

	blob, err := store.Open(ctx, "x/a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))

	n, err = blob.ReadAt(ctx, buf, 8)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)

	rc, err := blob.ReadRange(ctx, 5, 100)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(got))

	require.NoError(t, store.Delete(ctx, "x/a"))
	_, err = store.Open(ctx, "x/a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReaderAtAdapter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a", []byte("abcdef")))

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)

	r := io.NewSectionReader(ReaderAt(ctx, blob), 2, 3)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "cde", string(got))
}
