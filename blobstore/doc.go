// Package blobstore provides the storage abstraction behind remote and local
// row-table readers.
//
// A finalized table file is an immutable blob. Readers only need positioned
// reads, so every backend exposes the same small surface:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Streaming upload
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// # Built-in Implementations
//
//   - LocalStore: local file system, mmap-backed reads, atomic rename on write
//   - MemoryStore: in-process map, for tests
//   - CachingStore: block cache in front of any other store
//   - s3.Store, s3.DDBCommitStore: Amazon S3 and DynamoDB-coordinated commits
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
