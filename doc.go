// Package rowtable provides a persistent store for fixed-shape float32 tables
// whose rows are addressed by position and by stable row name.
//
// A table is a dense R×C matrix plus an ordered row index of R unique names
// and an ordered list of C unique column names. Tables live as named groups
// inside a single file; one file may hold many groups.
//
// # Quick Start
//
// Writing:
//
//	w, _ := rowtable.Create("embeddings.rtb", "train",
//	    []string{"row1", "row2", "row3"},
//	    []string{"col1", "col2"})
//	w.SetRow("row2", []float32{3, 4})
//	w.SetRowAt(0, []float32{1, 2})
//	w.SetRowAt(2, []float32{5, 6})
//	w.Close()
//
// Reading:
//
//	r, _ := rowtable.Open("embeddings.rtb", "train")
//	defer r.Close()
//	row, _ := r.Row(ctx, 1) // [3 4]
//	rows, cols := r.Shape() // 3, 2
//
// # Write Phase
//
// Create fills every cell with the placeholder (0 unless WithPlaceholder is
// set) and marks the group open. Rows may then be written in any order and
// any number of times; the last write wins. Close records which rows were
// written and seals the group. Readers reject groups whose writer has not
// closed.
//
// # Durability Model
//
// The file is append-only. Each commit writes a new group directory at the
// end of the file and then flips one of two superblock slots to point at it,
// so a crash leaves either the old or the new directory visible. Replacing
// a group does not reclaim the space of its previous version.
//
// # Remote Tables
//
// Finalized files can be published to any blobstore.BlobStore and read back
// without downloading them:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("tables/"))
//	_ = rowtable.Publish(ctx, "embeddings.rtb", store, "embeddings.rtb")
//	r, _ := rowtable.OpenBlob(ctx, store, "embeddings.rtb", "train",
//	    rowtable.WithBlockCache(64<<20, 0))
//
// # Errors
//
// Failures are reported as typed errors that match a sentinel with
// errors.Is: ErrSchema, ErrShape, ErrIndex, ErrKey, ErrNotFound, ErrIO and
// ErrClosed.
package rowtable
