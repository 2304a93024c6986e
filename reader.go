package rowtable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rowtable/blobstore"
	"github.com/hupe1980/rowtable/internal/cache"
	"github.com/hupe1980/rowtable/internal/format"
	"github.com/hupe1980/rowtable/internal/hash"
	"github.com/hupe1980/rowtable/internal/resource"
)

// Reader gives random access to the rows of a finalized table.
//
// A Reader is immutable after Open and safe for concurrent use, including
// a Close that races with reads.
type Reader struct {
	path  string
	group string
	opts  options

	blob     blobstore.Blob
	data     []byte               // mapped file, nil for remote blobs
	rc       *resource.Controller // fetch concurrency
	throttle *resource.Controller // IO limit, nil when a block cache throttles
	entry    format.GroupEntry
	rows     *nameIndex
	columns  *nameIndex
	written  *roaring.Bitmap
	cache    *cache.LRU // per-reader block cache, nil without WithBlockCache

	mu     sync.RWMutex // held for reading while data or blob is in use
	closed atomic.Bool
}

// Open opens the finalized group of the table file at path.
//
// It returns a *NotFoundError when the file is missing or is not a table
// file, when the group is absent, or when its writer has not closed yet.
func Open(path, group string, opts ...Option) (*Reader, error) {
	start := time.Now()
	o := applyOptions(opts)
	ctx := context.Background()

	r, err := openLocal(ctx, path, group, o)

	o.metricsCollector.RecordOpen(time.Since(start), err)
	o.logger.LogOpen(ctx, path, group, err)
	return r, err
}

func openLocal(ctx context.Context, path, group string, o options) (*Reader, error) {
	b, err := blobstore.OpenLocal(path)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, notFound(path, group, "no such file", err)
		}
		return nil, ioError("open", path, err)
	}
	return newReader(ctx, b, path, group, o, o.controller(), true)
}

// OpenBlob opens the finalized group of the table stored as name in store.
// WithBlockCache puts an LRU block cache in front of store.
func OpenBlob(ctx context.Context, store blobstore.BlobStore, name, group string, opts ...Option) (*Reader, error) {
	start := time.Now()
	o := applyOptions(opts)

	r, err := openBlob(ctx, store, name, group, o)

	o.metricsCollector.RecordOpen(time.Since(start), err)
	o.logger.LogOpen(ctx, name, group, err)
	return r, err
}

func openBlob(ctx context.Context, store blobstore.BlobStore, name, group string, o options) (*Reader, error) {
	rc := o.controller()
	var lru *cache.LRU
	if o.cacheBytes > 0 {
		lru = cache.NewLRU(o.cacheBytes, rc)
		store = blobstore.NewCachingStore(store, lru, o.cacheBlockSize,
			blobstore.WithFetchController(rc))
	}

	b, err := store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, notFound(name, group, "no such blob", err)
		}
		return nil, ioError("open", name, err)
	}
	// The caching store throttles its own backend fetches.
	r, err := newReader(ctx, b, name, group, o, rc, lru == nil)
	if err != nil {
		return nil, err
	}
	r.cache = lru
	return r, nil
}

// newReader loads the table metadata from b. It takes ownership of b.
// With throttle set, reads from b are charged against the IO limit of rc.
func newReader(ctx context.Context, b blobstore.Blob, path, group string, o options,
	rc *resource.Controller, throttle bool) (r *Reader, err error) {
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	dir, err := format.LoadDirectory(blobstore.ReaderAt(ctx, b), b.Size())
	if err != nil {
		if isFormatError(err) {
			return nil, notFound(path, group, "not a table file", err)
		}
		return nil, ioError("load directory", path, err)
	}

	entry, ok := dir.Lookup(group)
	if !ok {
		return nil, notFound(path, group, "no such group", nil)
	}
	if entry.State != format.StateFinalized {
		return nil, notFound(path, group, "group not finalized", nil)
	}

	r = &Reader{
		path:  path,
		group: group,
		opts:  o,
		blob:  b,
		rc:    rc,
		entry: *entry,
	}
	if throttle {
		r.throttle = rc
	}
	if m, ok := b.(blobstore.Mappable); ok {
		if data, merr := m.Bytes(); merr == nil {
			r.data = data
		}
	}
	r.hint(entry.Data, blobstore.HintRandom)

	rowNames, err := r.loadNames(ctx, entry.RowNames, entry.RowNamesChecksum)
	if err != nil {
		return nil, err
	}
	if r.rows, err = newNameIndex("rows", rowNames); err != nil {
		return nil, notFound(path, group, "invalid row index", err)
	}
	colNames, err := r.loadNames(ctx, entry.Columns, entry.ColumnsChecksum)
	if err != nil {
		return nil, err
	}
	if r.columns, err = newNameIndex("columns", colNames); err != nil {
		return nil, notFound(path, group, "invalid columns", err)
	}
	if uint64(r.rows.len()) != entry.Rows || uint64(r.columns.len()) != entry.Cols {
		return nil, notFound(path, group, "name lists do not match shape", format.ErrCorrupt)
	}

	raw, err := r.section(ctx, entry.Bitmap)
	if err != nil {
		return nil, err
	}
	if r.written, err = format.DecodeBitmap(raw); err != nil {
		return nil, notFound(path, group, "invalid row bitmap", err)
	}
	return r, nil
}

// hint passes an access pattern for s to blobs that accept one.
func (r *Reader) hint(s format.Section, h blobstore.AccessHint) {
	if hr, ok := r.blob.(blobstore.Hinter); ok {
		_ = hr.Hint(int64(s.Offset), int64(s.Length), h)
	}
}

func isFormatError(err error) bool {
	return errors.Is(err, format.ErrNoCommit) ||
		errors.Is(err, format.ErrInvalidMagic) ||
		errors.Is(err, format.ErrInvalidVersion) ||
		errors.Is(err, format.ErrCorrupt) ||
		errors.Is(err, format.ErrChecksum)
}

func (r *Reader) loadNames(ctx context.Context, s format.Section, sum uint32) ([]string, error) {
	raw, err := r.section(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := format.CheckSection(raw, sum); err != nil {
		return nil, notFound(r.path, r.group, "invalid name list", err)
	}
	names, err := format.DecodeNameSection(raw, r.entry.Compression)
	if err != nil {
		return nil, notFound(r.path, r.group, "invalid name list", err)
	}
	return names, nil
}

// section reads a metadata section. The directory guarantees it lies inside
// the blob.
func (r *Reader) section(ctx context.Context, s format.Section) ([]byte, error) {
	if r.data != nil {
		return r.data[s.Offset:s.End()], nil
	}
	buf := make([]byte, s.Length)
	if err := r.readAt(ctx, buf, int64(s.Offset)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) readAt(ctx context.Context, p []byte, off int64) error {
	if err := r.throttle.AcquireIO(ctx, len(p)); err != nil {
		return err
	}
	n, err := r.blob.ReadAt(ctx, p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return ioError("read", r.path, err)
}

// Len returns the number of rows.
func (r *Reader) Len() int { return r.rows.len() }

// Index returns the ordered row names.
func (r *Reader) Index() []string { return r.rows.list() }

// Columns returns the ordered column names.
func (r *Reader) Columns() []string { return r.columns.list() }

// Shape returns the row and column counts.
func (r *Reader) Shape() (int, int) { return r.rows.len(), r.columns.len() }

// IndexOf returns the position of the named row.
func (r *Reader) IndexOf(name string) (int, bool) { return r.rows.lookup(name) }

// Placeholder returns the value of cells that were never written.
func (r *Reader) Placeholder() float32 { return r.entry.Placeholder }

// IsSet reports whether row i was written before the table was closed.
func (r *Reader) IsSet(i int) bool {
	if i < 0 || i >= r.rows.len() {
		return false
	}
	return r.written.Contains(uint32(i))
}

// Written returns the number of rows that were written.
func (r *Reader) Written() int { return int(r.written.GetCardinality()) }

// Row returns a copy of row i.
func (r *Reader) Row(ctx context.Context, i int) ([]float32, error) {
	start := time.Now()
	values, err := r.row(ctx, i)
	r.opts.metricsCollector.RecordGetRow(time.Since(start), err)
	return values, err
}

func (r *Reader) row(ctx context.Context, i int) ([]float32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if i < 0 || i >= r.rows.len() {
		return nil, &IndexError{Index: i, Len: r.rows.len()}
	}

	values := make([]float32, r.columns.len())
	off := r.entry.RowOffset(i)
	size := r.entry.RowSize()
	if r.data != nil {
		format.DecodeRow(values, r.data[off:off+size])
		return values, nil
	}

	buf := make([]byte, size)
	if err := r.readAt(ctx, buf, off); err != nil {
		return nil, err
	}
	format.DecodeRow(values, buf)
	return values, nil
}

// RowByName returns a copy of the named row.
func (r *Reader) RowByName(ctx context.Context, name string) ([]float32, error) {
	i, ok := r.rows.lookup(name)
	if !ok {
		err := &KeyError{Name: name}
		r.opts.metricsCollector.RecordGetRow(0, err)
		return nil, err
	}
	return r.Row(ctx, i)
}

// Rows returns copies of the rows at positions, in the same order. Rows are
// fetched in parallel, bounded by WithMaxConcurrentFetches.
func (r *Reader) Rows(ctx context.Context, positions []int) ([][]float32, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	for _, i := range positions {
		if i < 0 || i >= r.rows.len() {
			return nil, &IndexError{Index: i, Len: r.rows.len()}
		}
	}

	out := make([][]float32, len(positions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.rc.MaxConcurrentFetches())
	for j, i := range positions {
		g.Go(func() error {
			values, err := r.Row(ctx, i)
			if err != nil {
				return err
			}
			out[j] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Verify streams the data body and compares it with the checksum stored
// when the table was closed.
func (r *Reader) Verify(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		return ErrClosed
	}
	r.hint(r.entry.Data, blobstore.HintSequential)
	defer r.hint(r.entry.Data, blobstore.HintRandom)

	rc, err := r.blob.ReadRange(ctx, int64(r.entry.Data.Offset), int64(r.entry.Data.Length))
	if err != nil {
		return ioError("verify", r.path, err)
	}
	defer func() { _ = rc.Close() }()

	sum, n, err := hash.ReadCRC32C(rc)
	if err != nil {
		return ioError("verify", r.path, err)
	}
	if uint64(n) != r.entry.Data.Length {
		return ioError("verify", r.path, io.ErrUnexpectedEOF)
	}
	if sum != r.entry.DataChecksum {
		return ioError("verify", r.path,
			fmt.Errorf("%w: got %08x, want %08x", format.ErrChecksum, sum, r.entry.DataChecksum))
	}
	return nil
}

// Close releases the underlying blob once in-flight reads have returned.
// Calling Close again is a no-op.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Swap(true) {
		return nil
	}
	err := r.blob.Close()
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return ioError("close", r.path, err)
}
