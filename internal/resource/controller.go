package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxConcurrentFetches applies when Config.MaxConcurrentFetches is 0.
const DefaultMaxConcurrentFetches = 16

// Config holds reader limits. Zero values mean unlimited, except
// MaxConcurrentFetches which falls back to DefaultMaxConcurrentFetches.
type Config struct {
	// MemoryLimitBytes caps the bytes held by block caches.
	MemoryLimitBytes int64
	// MaxConcurrentFetches caps in-flight backend reads.
	MaxConcurrentFetches int64
	// IOLimitBytesPerSec caps read throughput.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config. A nil *Controller imposes no limits.
type Controller struct {
	fetches int
	fetch   *semaphore.Weighted
	memory  *semaphore.Weighted // nil when unlimited
	inUse   atomic.Int64
	io      *rate.Limiter // nil when unlimited
}

// NewController returns a Controller for cfg.
func NewController(cfg Config) *Controller {
	fetches := cfg.MaxConcurrentFetches
	if fetches <= 0 {
		fetches = DefaultMaxConcurrentFetches
	}
	c := &Controller{
		fetches: int(fetches),
		fetch:   semaphore.NewWeighted(fetches),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memory = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// TryAcquireMemory charges n bytes without blocking and reports whether
// the budget allowed it.
func (c *Controller) TryAcquireMemory(n int64) bool {
	if c == nil || n <= 0 {
		return true
	}
	if c.memory != nil && !c.memory.TryAcquire(n) {
		return false
	}
	c.inUse.Add(n)
	return true
}

// ReleaseMemory returns n bytes charged by TryAcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.memory != nil {
		c.memory.Release(n)
	}
	c.inUse.Add(-n)
}

// MemoryUsage returns the bytes currently charged.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.inUse.Load()
}

// MaxConcurrentFetches returns the fetch concurrency limit.
func (c *Controller) MaxConcurrentFetches() int {
	if c == nil {
		return DefaultMaxConcurrentFetches
	}
	return c.fetches
}

// AcquireFetch takes a fetch slot, blocking until one is free or ctx ends.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.fetch.Acquire(ctx, 1)
}

// ReleaseFetch returns a slot taken by AcquireFetch.
func (c *Controller) ReleaseFetch() {
	if c != nil {
		c.fetch.Release(1)
	}
}

// AcquireIO waits until n bytes may be read. Requests above one second of
// budget are admitted in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	burst := c.io.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.io.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
