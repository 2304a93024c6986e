package cache

import "context"

// BlockKey identifies one block of one blob.
type BlockKey struct {
	// Blob is the blob name.
	Blob string
	// Index is the block number, offset / block size.
	Index int64
}

// Stats counts cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// BlockCache caches immutable blocks of blobs. Returned slices are read-only.
type BlockCache interface {
	// Get returns a cached block.
	Get(ctx context.Context, key BlockKey) ([]byte, bool)
	// Add caches b under key. A key that is already cached keeps its block.
	Add(ctx context.Context, key BlockKey, b []byte)
	// InvalidateBlob drops every block of the named blob.
	InvalidateBlob(name string)
	// Stats returns a snapshot of the counters.
	Stats() Stats
	// Close drops all blocks.
	Close() error
}
