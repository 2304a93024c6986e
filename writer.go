package rowtable

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rowtable/internal/compress"
	"github.com/hupe1980/rowtable/internal/conv"
	"github.com/hupe1980/rowtable/internal/format"
	"github.com/hupe1980/rowtable/internal/hash"
)

// chunkSize bounds buffers used for placeholder fills, bulk writes and
// checksum scans.
const chunkSize = 1 << 20

// Writer owns write access to one table until Close or Abort.
//
// A Writer is not safe for concurrent use; callers serialize its methods.
type Writer struct {
	path  string
	group string
	opts  options

	f     File
	dir   *format.Directory
	entry format.GroupEntry
	end   int64

	rows    *nameIndex
	columns *nameIndex
	written *roaring.Bitmap
	buf     []byte
	closed  bool
}

// Create creates the table group in the file at path and returns a Writer
// for it. Missing parent directories are created. Other groups of an
// existing table file are kept; an existing group with the same name is
// replaced. Every cell starts as the placeholder value.
func Create(path, group string, rows, columns []string, opts ...Option) (*Writer, error) {
	start := time.Now()
	o := applyOptions(opts)

	w, err := create(path, group, rows, columns, o)

	o.metricsCollector.RecordCreate(time.Since(start), err)
	o.logger.LogCreate(context.Background(), path, group, len(rows), len(columns), err)
	return w, err
}

func create(path, group string, rows, columns []string, o options) (*Writer, error) {
	if group == "" {
		return nil, &SchemaError{Field: "group", Reason: "must not be empty"}
	}
	if !compress.Type(o.compression).Valid() {
		return nil, &SchemaError{Field: "compression", Reason: "unknown compression " + o.compression.String()}
	}
	rowIdx, err := newNameIndex("rows", rows)
	if err != nil {
		return nil, err
	}
	colIdx, err := newNameIndex("columns", columns)
	if err != nil {
		return nil, err
	}
	if _, err := conv.BodySize(uint64(len(rows)), uint64(len(columns))); err != nil {
		return nil, &SchemaError{Field: "rows", Reason: "table too large"}
	}

	if err := o.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioError("mkdir", path, err)
	}
	_, statErr := o.fs.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := o.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, ioError("create", path, err)
	}

	w := &Writer{
		path:    path,
		group:   group,
		opts:    o,
		f:       f,
		rows:    rowIdx,
		columns: colIdx,
		written: roaring.New(),
		buf:     make([]byte, len(columns)*4),
	}
	if err := w.init(); err != nil {
		_ = f.Close()
		if fresh {
			// Leave no half-initialized file behind.
			_ = o.fs.Remove(path)
		}
		return nil, err
	}
	return w, nil
}

// init loads the existing directory, allocates the group region at the end
// of the file and commits the group in open state.
func (w *Writer) init() error {
	info, err := w.f.Stat()
	if err != nil {
		return ioError("stat", w.path, err)
	}
	w.end = info.Size()
	w.dir = &format.Directory{}

	if w.end > 0 {
		dir, err := format.LoadDirectory(w.f, w.end)
		switch {
		case err == nil:
			w.dir = dir
		case errors.Is(err, format.ErrNoCommit):
			if err := w.reset(); err != nil {
				return err
			}
		default:
			return ioError("load directory", w.path, err)
		}
	}
	if w.end == 0 {
		// An empty directory encodes as zeros, so a crash before this
		// commit completes still leaves an all-zero file.
		if err := w.commitDirectory(); err != nil {
			return err
		}
	}

	ct := compress.Type(w.opts.compression)
	rowSec, err := format.EncodeNameSection(w.rows.names, ct)
	if err != nil {
		return ioError("encode rows", w.path, err)
	}
	colSec, err := format.EncodeNameSection(w.columns.names, ct)
	if err != nil {
		return ioError("encode columns", w.path, err)
	}

	off := format.Align(max(w.end, format.DataStart))
	if _, err := w.f.WriteAt(rowSec, off); err != nil {
		return ioError("write rows", w.path, err)
	}
	colOff := off + int64(len(rowSec))
	if _, err := w.f.WriteAt(colSec, colOff); err != nil {
		return ioError("write columns", w.path, err)
	}

	R, C := w.rows.len(), w.columns.len()
	dataOff := format.Align(colOff + int64(len(colSec)))
	dataLen := int64(R) * int64(C) * 4
	if err := w.fill(dataOff, dataLen); err != nil {
		return ioError("fill", w.path, err)
	}
	w.end = dataOff + dataLen

	w.entry = format.GroupEntry{
		Name:        w.group,
		State:       format.StateOpen,
		Compression: ct,
		Rows:        uint64(R),
		Cols:        uint64(C),
		Placeholder: w.opts.placeholder,
		RowNames:    format.Section{Offset: uint64(off), Length: uint64(len(rowSec))},
		Columns:     format.Section{Offset: uint64(colOff), Length: uint64(len(colSec))},
		Data:        format.Section{Offset: uint64(dataOff), Length: uint64(dataLen)},

		RowNamesChecksum: hash.CRC32C(rowSec),
		ColumnsChecksum:  hash.CRC32C(colSec),
	}
	return w.commit()
}

// reset truncates a file that holds no committed directory. Only a file
// that is zero throughout is taken for the remains of an interrupted
// Create; anything else is somebody else's data.
func (w *Writer) reset() error {
	blank, err := format.IsBlank(w.f, w.end)
	if err != nil {
		return ioError("load directory", w.path, err)
	}
	if !blank {
		return ioError("load directory", w.path, format.ErrInvalidMagic)
	}
	if err := w.f.Truncate(0); err != nil {
		return ioError("truncate", w.path, err)
	}
	w.end = 0
	return nil
}

// fill writes the placeholder into every cell of the data body. A zero
// placeholder only extends the file.
func (w *Writer) fill(off, length int64) error {
	if math.Float32bits(w.opts.placeholder) == 0 {
		return w.f.Truncate(off + length)
	}

	cells := int(min(length, chunkSize) / 4)
	values := make([]float32, cells)
	for i := range values {
		values[i] = w.opts.placeholder
	}
	chunk := make([]byte, cells*4)
	format.EncodeRow(chunk, values)

	for done := int64(0); done < length; {
		n := min(int64(len(chunk)), length-done)
		if _, err := w.f.WriteAt(chunk[:n], off+done); err != nil {
			return err
		}
		done += n
	}
	return nil
}

func (w *Writer) commit() error {
	w.dir.Put(w.entry)
	return w.commitDirectory()
}

func (w *Writer) commitDirectory() error {
	end, err := format.Commit(w.f, w.dir, w.end, w.opts.durable)
	if err != nil {
		return ioError("commit", w.path, err)
	}
	w.end = end
	return nil
}

// Len returns the number of rows.
func (w *Writer) Len() int { return w.rows.len() }

// Index returns the ordered row names.
func (w *Writer) Index() []string { return w.rows.list() }

// Columns returns the ordered column names.
func (w *Writer) Columns() []string { return w.columns.list() }

// Shape returns the row and column counts.
func (w *Writer) Shape() (int, int) { return w.rows.len(), w.columns.len() }

// IndexOf returns the position of the named row.
func (w *Writer) IndexOf(name string) (int, bool) { return w.rows.lookup(name) }

// SetRowAt writes values into row i. Later writes to the same row win.
func (w *Writer) SetRowAt(i int, values []float32) error {
	start := time.Now()
	err := w.setRowAt(i, values)
	w.opts.metricsCollector.RecordSetRow(time.Since(start), err)
	return err
}

func (w *Writer) setRowAt(i int, values []float32) error {
	if w.closed {
		return ErrClosed
	}
	if i < 0 || i >= w.rows.len() {
		return &IndexError{Index: i, Len: w.rows.len()}
	}
	if len(values) != w.columns.len() {
		return &ShapeError{Expected: w.columns.len(), Actual: len(values)}
	}

	format.EncodeRow(w.buf, values)
	if _, err := w.f.WriteAt(w.buf, w.entry.RowOffset(i)); err != nil {
		return ioError("write row", w.path, err)
	}
	w.written.Add(uint32(i))
	return nil
}

// SetRow writes values into the named row.
func (w *Writer) SetRow(name string, values []float32) error {
	if w.closed {
		return ErrClosed
	}
	i, ok := w.rows.lookup(name)
	if !ok {
		err := &KeyError{Name: name}
		w.opts.metricsCollector.RecordSetRow(0, err)
		return err
	}
	return w.SetRowAt(i, values)
}

// SetRowsAt writes consecutive rows starting at position start. All rows are
// validated before anything is written; ctx is checked between chunks.
func (w *Writer) SetRowsAt(ctx context.Context, start int, rows [][]float32) error {
	if w.closed {
		return ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}
	if start < 0 || start >= w.rows.len() {
		return &IndexError{Index: start, Len: w.rows.len()}
	}
	if last := start + len(rows) - 1; last >= w.rows.len() {
		return &IndexError{Index: last, Len: w.rows.len()}
	}
	C := w.columns.len()
	for _, values := range rows {
		if len(values) != C {
			return &ShapeError{Expected: C, Actual: len(values)}
		}
	}

	rowSize := C * 4
	perChunk := max(1, chunkSize/rowSize)
	buf := make([]byte, min(perChunk, len(rows))*rowSize)

	for lo := 0; lo < len(rows); lo += perChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+perChunk, len(rows))
		for j := lo; j < hi; j++ {
			format.EncodeRow(buf[(j-lo)*rowSize:], rows[j])
		}
		if _, err := w.f.WriteAt(buf[:(hi-lo)*rowSize], w.entry.RowOffset(start+lo)); err != nil {
			return ioError("write rows", w.path, err)
		}
		w.written.AddRange(uint64(start+lo), uint64(start+hi))
	}
	return nil
}

// Close finalizes the table: it stores the set of written rows and the body
// checksum, marks the group finalized and closes the file. Unwritten rows
// keep the placeholder. Calling Close again is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	start := time.Now()

	err := w.finalize()
	if cerr := w.f.Close(); cerr != nil {
		err = errors.Join(err, ioError("close", w.path, cerr))
	}

	w.opts.metricsCollector.RecordClose(time.Since(start), err)
	w.opts.logger.LogClose(context.Background(), w.path, w.group,
		int(w.written.GetCardinality()), w.rows.len(), err)
	return err
}

func (w *Writer) finalize() error {
	bm, err := format.EncodeBitmap(w.written)
	if err != nil {
		return ioError("encode bitmap", w.path, err)
	}
	off := format.Align(w.end)
	if _, err := w.f.WriteAt(bm, off); err != nil {
		return ioError("write bitmap", w.path, err)
	}
	w.entry.Bitmap = format.Section{Offset: uint64(off), Length: uint64(len(bm))}
	w.end = off + int64(len(bm))

	sum, err := w.checksum()
	if err != nil {
		return ioError("checksum", w.path, err)
	}
	w.entry.DataChecksum = sum
	w.entry.State = format.StateFinalized
	return w.commit()
}

// checksum computes the CRC32C of the data body as written.
func (w *Writer) checksum() (uint32, error) {
	off := int64(w.entry.Data.Offset)
	length := int64(w.entry.Data.Length)
	buf := make([]byte, min(length, chunkSize))

	var crc uint32
	for done := int64(0); done < length; {
		n := min(int64(len(buf)), length-done)
		if _, err := w.f.ReadAt(buf[:n], off+done); err != nil {
			return 0, err
		}
		crc = hash.UpdateCRC32C(crc, buf[:n])
		done += n
	}
	return crc, nil
}

// Abort releases the file without finalizing. The group stays open and
// readers reject it until a new Writer replaces it.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := ioError("close", w.path, w.f.Close())
	w.opts.logger.LogAbort(context.Background(), w.path, w.group, err)
	return err
}
