package rowtable

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rowtable/internal/format"
	"github.com/hupe1980/rowtable/internal/fs"
)

var (
	testRows    = []string{"row1", "row2", "row3"}
	testColumns = []string{"col1", "col2"}
	testData    = [][]float32{{1, 2}, {3, 4}, {5, 6}}
)

func tablePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "table.rtb")
}

// writeTable creates and closes a table holding data.
func writeTable(t *testing.T, path, group string, rows, columns []string, data [][]float32, opts ...Option) {
	t.Helper()
	w, err := Create(path, group, rows, columns, opts...)
	require.NoError(t, err)
	for i, values := range data {
		require.NoError(t, w.SetRowAt(i, values))
	}
	require.NoError(t, w.Close())
}

func loadDirectory(t *testing.T, path string) *format.Directory {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)
	dir, err := format.LoadDirectory(f, info.Size())
	require.NoError(t, err)
	return dir
}

// switchFS fails every positioned write once fail is set.
type switchFS struct {
	fs.FileSystem
	fail atomic.Bool
}

var errSwitched = errors.New("write refused")

func (s *switchFS) OpenFile(name string, flag int, perm os.FileMode) (fs.File, error) {
	f, err := s.FileSystem.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &switchFile{File: f, fs: s}, nil
}

type switchFile struct {
	fs.File
	fs *switchFS
}

func (f *switchFile) WriteAt(p []byte, off int64) (int, error) {
	if f.fs.fail.Load() {
		return 0, errSwitched
	}
	return f.File.WriteAt(p, off)
}

func TestCreate(t *testing.T) {
	t.Run("Accessors", func(t *testing.T) {
		w, err := Create(tablePath(t), "g", testRows, testColumns)
		require.NoError(t, err)
		defer w.Close()

		assert.Equal(t, 3, w.Len())
		assert.Equal(t, testRows, w.Index())
		assert.Equal(t, testColumns, w.Columns())
		r, c := w.Shape()
		assert.Equal(t, 3, r)
		assert.Equal(t, 2, c)

		i, ok := w.IndexOf("row3")
		assert.True(t, ok)
		assert.Equal(t, 2, i)
		_, ok = w.IndexOf("nope")
		assert.False(t, ok)
	})

	t.Run("CommitsOpenGroup", func(t *testing.T) {
		path := tablePath(t)
		w, err := Create(path, "g", testRows, testColumns, WithPlaceholder(-1))
		require.NoError(t, err)
		defer w.Close()

		entry, ok := loadDirectory(t, path).Lookup("g")
		require.True(t, ok)
		assert.Equal(t, format.StateOpen, entry.State)
		assert.Equal(t, uint64(3), entry.Rows)
		assert.Equal(t, uint64(2), entry.Cols)
		assert.Equal(t, float32(-1), entry.Placeholder)
		assert.Zero(t, entry.Data.Offset%format.Alignment)
	})

	t.Run("SchemaErrors", func(t *testing.T) {
		tests := []struct {
			name    string
			group   string
			rows    []string
			columns []string
		}{
			{"EmptyGroup", "", testRows, testColumns},
			{"NoRows", "g", nil, testColumns},
			{"NoColumns", "g", testRows, []string{}},
			{"DuplicateRow", "g", []string{"a", "b", "a"}, testColumns},
			{"DuplicateColumn", "g", testRows, []string{"x", "x"}},
			{"EmptyRowName", "g", []string{"a", ""}, testColumns},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				path := tablePath(t)
				_, err := Create(path, tt.group, tt.rows, tt.columns)
				assert.ErrorIs(t, err, ErrSchema)

				_, statErr := os.Stat(path)
				assert.True(t, os.IsNotExist(statErr), "no file is created for an invalid schema")
			})
		}
	})

	t.Run("UnknownCompression", func(t *testing.T) {
		_, err := Create(tablePath(t), "g", testRows, testColumns, WithCompression(Compression(42)))
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("NotATableFile", func(t *testing.T) {
		path := tablePath(t)
		require.NoError(t, os.WriteFile(path, []byte("definitely not a table file, just some text"), 0o644))

		_, err := Create(path, "g", testRows, testColumns)
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, format.ErrInvalidMagic)
	})

	t.Run("ZeroFilledFileStartsFresh", func(t *testing.T) {
		path := tablePath(t)
		require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

		writeTable(t, path, "g", testRows, testColumns, testData)

		r, err := Open(path, "g")
		require.NoError(t, err)
		defer r.Close()
		row, err := r.Row(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, []float32{5, 6}, row)
	})

	t.Run("ZeroHeaderKeepsData", func(t *testing.T) {
		path := tablePath(t)
		content := make([]byte, 4096)
		copy(content[format.DataStart:], "payload that belongs to someone else")
		require.NoError(t, os.WriteFile(path, content, 0o644))

		_, err := Create(path, "g", testRows, testColumns)
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, format.ErrInvalidMagic)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("FreshFileCommitsBeforeGroupWrites", func(t *testing.T) {
		path := tablePath(t)
		w, err := Create(path, "g", testRows, testColumns)
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		// Every table file carries a commit, so a later Create never
		// mistakes it for foreign data.
		dir := loadDirectory(t, path)
		assert.Equal(t, uint64(2), dir.Generation)
		writeTable(t, path, "h", testRows, testColumns, testData)
		assert.Len(t, loadDirectory(t, path).Groups, 2)
	})

	t.Run("OpenFault", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("table", fs.Fault{FailAfterBytes: -1, FailOnOpen: true})

		_, err := Create(tablePath(t), "g", testRows, testColumns, WithFileSystem(ffs))
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, fs.ErrInjected)
	})

	t.Run("SyncFault", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("table", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

		path := tablePath(t)
		_, err := Create(path, "g", testRows, testColumns, WithFileSystem(ffs))
		assert.ErrorIs(t, err, ErrIO)
		assert.NoFileExists(t, path)

		// Without fsync the same file system works.
		w, err := Create(tablePath(t), "g", testRows, testColumns, WithFileSystem(ffs), WithSync(false))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	})

	t.Run("WriteFault", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("table", fs.Fault{FailAfterBytes: 0})

		path := tablePath(t)
		_, err := Create(path, "g", testRows, testColumns, WithFileSystem(ffs))
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, fs.ErrInjected)
		assert.NoFileExists(t, path)

		// An existing table survives a failed Create of another group.
		writeTable(t, path, "keep", testRows, testColumns, testData)
		_, err = Create(path, "g", testRows, testColumns, WithFileSystem(ffs))
		assert.ErrorIs(t, err, ErrIO)

		r, err := Open(path, "keep")
		require.NoError(t, err)
		defer r.Close()
		assert.Equal(t, 3, r.Written())
	})

	t.Run("CreatesParentDirs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "table.rtb")
		writeTable(t, path, "g", testRows, testColumns, testData)
		assert.FileExists(t, path)
	})
}

func TestWriterSetRow(t *testing.T) {
	t.Run("Errors", func(t *testing.T) {
		w, err := Create(tablePath(t), "g", testRows, testColumns)
		require.NoError(t, err)
		defer w.Close()

		var ie *IndexError
		err = w.SetRowAt(-1, []float32{1, 2})
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, -1, ie.Index)
		assert.Equal(t, 3, ie.Len)

		assert.ErrorIs(t, w.SetRowAt(3, []float32{1, 2}), ErrIndex)

		var se *ShapeError
		err = w.SetRowAt(0, []float32{1, 2, 3})
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 2, se.Expected)
		assert.Equal(t, 3, se.Actual)
		assert.ErrorIs(t, w.SetRowAt(0, nil), ErrShape)

		var ke *KeyError
		err = w.SetRow("row4", []float32{1, 2})
		require.ErrorAs(t, err, &ke)
		assert.Equal(t, "row4", ke.Name)

		// Position errors win over shape errors.
		assert.ErrorIs(t, w.SetRowAt(7, []float32{1}), ErrIndex)
	})

	t.Run("AfterClose", func(t *testing.T) {
		w, err := Create(tablePath(t), "g", testRows, testColumns)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.ErrorIs(t, w.SetRowAt(0, []float32{1, 2}), ErrClosed)
		assert.ErrorIs(t, w.SetRow("row1", []float32{1, 2}), ErrClosed)
		assert.ErrorIs(t, w.SetRowsAt(context.Background(), 0, testData), ErrClosed)
		assert.NoError(t, w.Close())
		assert.NoError(t, w.Abort())
	})

	t.Run("WriteFaultLeavesWriterUsable", func(t *testing.T) {
		sfs := &switchFS{FileSystem: fs.Default}
		path := tablePath(t)
		w, err := Create(path, "g", testRows, testColumns, WithFileSystem(sfs))
		require.NoError(t, err)

		require.NoError(t, w.SetRowAt(0, []float32{1, 2}))

		sfs.fail.Store(true)
		err = w.SetRowAt(1, []float32{3, 4})
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, errSwitched)
		assert.ErrorIs(t, w.SetRowsAt(context.Background(), 2, [][]float32{{5, 6}}), ErrIO)

		sfs.fail.Store(false)
		require.NoError(t, w.Close())

		r, err := Open(path, "g")
		require.NoError(t, err)
		defer r.Close()
		assert.True(t, r.IsSet(0))
		assert.False(t, r.IsSet(1))
		assert.False(t, r.IsSet(2))
		assert.Equal(t, 1, r.Written())
	})

	t.Run("CloseFault", func(t *testing.T) {
		sfs := &switchFS{FileSystem: fs.Default}
		path := tablePath(t)
		w, err := Create(path, "g", testRows, testColumns, WithFileSystem(sfs))
		require.NoError(t, err)

		sfs.fail.Store(true)
		assert.ErrorIs(t, w.Close(), ErrIO)

		_, err = Open(path, "g")
		assert.ErrorIs(t, err, ErrNotFound, "group stays open when finalization fails")
	})
}

func TestWriterSetRowsAt(t *testing.T) {
	ctx := context.Background()

	t.Run("Bulk", func(t *testing.T) {
		path := tablePath(t)
		w, err := Create(path, "g", []string{"a", "b", "c", "d"}, testColumns)
		require.NoError(t, err)

		require.NoError(t, w.SetRowsAt(ctx, 1, [][]float32{{1, 1}, {2, 2}, {3, 3}}))
		require.NoError(t, w.SetRowsAt(ctx, 0, nil))
		require.NoError(t, w.Close())

		r, err := Open(path, "g")
		require.NoError(t, err)
		defer r.Close()

		rows, err := r.Rows(ctx, []int{0, 1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0, 0}, {1, 1}, {2, 2}, {3, 3}}, rows)
		assert.False(t, r.IsSet(0))
		assert.Equal(t, 3, r.Written())
	})

	t.Run("ValidatesBeforeWriting", func(t *testing.T) {
		path := tablePath(t)
		w, err := Create(path, "g", testRows, testColumns)
		require.NoError(t, err)

		assert.ErrorIs(t, w.SetRowsAt(ctx, 0, [][]float32{{1, 2}, {3}}), ErrShape)
		assert.ErrorIs(t, w.SetRowsAt(ctx, 2, [][]float32{{1, 2}, {3, 4}}), ErrIndex)
		assert.ErrorIs(t, w.SetRowsAt(ctx, -1, [][]float32{{1, 2}}), ErrIndex)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, w.SetRowsAt(cctx, 0, testData), context.Canceled)

		require.NoError(t, w.Close())

		r, err := Open(path, "g")
		require.NoError(t, err)
		defer r.Close()
		assert.Zero(t, r.Written())
	})
}

func TestWriterClose(t *testing.T) {
	t.Run("Finalizes", func(t *testing.T) {
		path := tablePath(t)
		writeTable(t, path, "g", testRows, testColumns, testData)

		entry, ok := loadDirectory(t, path).Lookup("g")
		require.True(t, ok)
		assert.Equal(t, format.StateFinalized, entry.State)
		assert.NotZero(t, entry.Bitmap.Length)
		assert.NotZero(t, entry.DataChecksum)
	})

	t.Run("FileCloseFault", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("table", fs.Fault{FailAfterBytes: -1, FailOnClose: true})

		path := tablePath(t)
		w, err := Create(path, "g", testRows, testColumns, WithFileSystem(ffs))
		require.NoError(t, err)
		require.NoError(t, w.SetRowAt(0, []float32{1, 2}))

		err = w.Close()
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, fs.ErrInjected)

		// The commit happened before the failing close.
		r, err := Open(path, "g")
		require.NoError(t, err)
		defer r.Close()
		assert.True(t, r.IsSet(0))
	})

	t.Run("Abort", func(t *testing.T) {
		path := tablePath(t)
		w, err := Create(path, "g", testRows, testColumns)
		require.NoError(t, err)
		require.NoError(t, w.SetRowAt(0, []float32{1, 2}))
		require.NoError(t, w.Abort())
		assert.NoError(t, w.Abort())
		assert.NoError(t, w.Close())
		assert.ErrorIs(t, w.SetRowAt(0, []float32{1, 2}), ErrClosed)

		_, err = Open(path, "g")
		assert.ErrorIs(t, err, ErrNotFound)

		// A new writer replaces the abandoned group.
		writeTable(t, path, "g", testRows, testColumns, testData)
		r, err := Open(path, "g")
		require.NoError(t, err)
		defer r.Close()
		assert.Equal(t, 3, r.Written())
	})
}

func TestWriterPlaceholder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		value float32
	}{
		{"Zero", 0},
		{"Negative", -1.5},
		{"NaN", float32(math.NaN())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tablePath(t)
			w, err := Create(path, "g", testRows, testColumns, WithPlaceholder(tt.value))
			require.NoError(t, err)
			require.NoError(t, w.SetRow("row2", []float32{3, 4}))
			require.NoError(t, w.Close())

			r, err := Open(path, "g")
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, math.Float32bits(tt.value), math.Float32bits(r.Placeholder()))
			for _, i := range []int{0, 2} {
				row, err := r.Row(ctx, i)
				require.NoError(t, err)
				for _, v := range row {
					assert.Equal(t, math.Float32bits(tt.value), math.Float32bits(v))
				}
				assert.False(t, r.IsSet(i))
			}

			row, err := r.Row(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, []float32{3, 4}, row)
			assert.True(t, r.IsSet(1))
			require.NoError(t, r.Verify(ctx))
		})
	}
}

func TestWriterLargePlaceholderFill(t *testing.T) {
	ctx := context.Background()
	path := tablePath(t)

	rows := make([]string, 3000)
	for i := range rows {
		rows[i] = "r" + string(rune('a'+i%26)) + string(rune('0'+i/26%10)) + string(rune('0'+i/260))
	}
	columns := make([]string, 128)
	for i := range columns {
		columns[i] = "c" + string(rune('0'+i/100)) + string(rune('0'+i/10%10)) + string(rune('0'+i%10))
	}

	w, err := Create(path, "g", rows, columns, WithPlaceholder(7), WithSync(false))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path, "g")
	require.NoError(t, err)
	defer r.Close()

	for _, i := range []int{0, 1234, 2999} {
		row, err := r.Row(ctx, i)
		require.NoError(t, err)
		require.Len(t, row, 128)
		assert.Equal(t, float32(7), row[0])
		assert.Equal(t, float32(7), row[127])
	}
	require.NoError(t, r.Verify(ctx))
}
