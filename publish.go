package rowtable

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/hupe1980/rowtable/blobstore"
	"github.com/hupe1980/rowtable/internal/format"
)

// Publish uploads the table file at path to store under name. Every group
// in the file must be finalized; a file with an open group is rejected with
// a *NotFoundError.
//
// The upload is streamed; a failed upload is aborted when the store
// supports it, so name is either fully replaced or left untouched.
func Publish(ctx context.Context, path string, store blobstore.BlobStore, name string, opts ...Option) error {
	o := applyOptions(opts)
	size, err := publish(ctx, path, store, name, o)
	o.logger.LogPublish(ctx, path, name, size, err)
	return err
}

func publish(ctx context.Context, path string, store blobstore.BlobStore, name string, o options) (int64, error) {
	f, err := o.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, notFound(path, "", "no such file", err)
		}
		return 0, ioError("open", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, ioError("stat", path, err)
	}
	size := info.Size()

	dir, err := format.LoadDirectory(f, size)
	if err != nil {
		if isFormatError(err) {
			return 0, notFound(path, "", "not a table file", err)
		}
		return 0, ioError("load directory", path, err)
	}
	for _, g := range dir.Groups {
		if g.State != format.StateFinalized {
			return 0, notFound(path, g.Name, "group not finalized", nil)
		}
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return 0, ioError("publish", name, err)
	}
	src := &ctxReader{ctx: ctx, r: io.NewSectionReader(f, 0, size)}
	if _, err := io.Copy(w, src); err != nil {
		abort(w)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, ioError("publish", name, err)
	}
	if err := w.Close(); err != nil {
		return 0, ioError("publish", name, err)
	}
	return size, nil
}

func abort(w blobstore.WritableBlob) {
	if a, ok := w.(blobstore.Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
