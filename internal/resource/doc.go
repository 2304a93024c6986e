// Package resource bounds the memory, fetch concurrency and read bandwidth
// used by table readers.
//
//   - Memory: the block cache charges every cached block against a hard
//     budget (non-blocking, fail-fast).
//   - Fetch concurrency: multi-row reads hold a slot per in-flight fetch.
//   - IO: a token bucket throttles bytes read from remote blobs.
//
// A nil *Controller is valid and imposes no limits:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   256 << 20,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//	if err := rc.AcquireIO(ctx, len(buf)); err != nil { ... }
package resource
