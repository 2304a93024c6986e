package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/hupe1980/rowtable/internal/resource"
)

type block struct {
	key  BlockKey
	data []byte
}

// LRU is a BlockCache bounded by total block bytes. Blocks are indexed per
// blob so that replacing a blob drops only its blocks.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	order    *list.List // front is most recent
	blobs    map[string]map[int64]*list.Element
	rc       *resource.Controller
	stats    Stats
}

// NewLRU returns a cache holding at most capacity bytes. With a non-nil rc,
// block memory is also charged against its budget; blocks the budget cannot
// hold are not cached.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		blobs:    make(map[string]map[int64]*list.Element),
		rc:       rc,
	}
}

// Get implements BlockCache.
func (c *LRU) Get(_ context.Context, key BlockKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.blobs[key.Blob][key.Index]; ok {
		c.stats.Hits++
		c.order.MoveToFront(e)
		return e.Value.(*block).data, true
	}
	c.stats.Misses++
	return nil, false
}

// Add implements BlockCache.
func (c *LRU) Add(_ context.Context, key BlockKey, b []byte) {
	n := int64(len(b))
	if n > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.blobs[key.Blob][key.Index]; ok {
		c.order.MoveToFront(e)
		return
	}
	for c.size+n > c.capacity && c.evictOldest() {
	}
	if !c.rc.TryAcquireMemory(n) {
		return
	}

	blocks := c.blobs[key.Blob]
	if blocks == nil {
		blocks = make(map[int64]*list.Element)
		c.blobs[key.Blob] = blocks
	}
	blocks[key.Index] = c.order.PushFront(&block{key: key, data: b})
	c.size += n
}

// InvalidateBlob implements BlockCache.
func (c *LRU) InvalidateBlob(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.blobs[name] {
		c.remove(e)
	}
}

// Stats implements BlockCache.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close drops all blocks and returns their memory to the controller.
func (c *LRU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.Len() > 0 {
		c.remove(c.order.Back())
	}
	return nil
}

// Size returns the cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached blocks.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU) evictOldest() bool {
	e := c.order.Back()
	if e == nil {
		return false
	}
	c.remove(e)
	c.stats.Evictions++
	return true
}

func (c *LRU) remove(e *list.Element) {
	b := c.order.Remove(e).(*block)
	blocks := c.blobs[b.key.Blob]
	delete(blocks, b.key.Index)
	if len(blocks) == 0 {
		delete(c.blobs, b.key.Blob)
	}
	n := int64(len(b.data))
	c.size -= n
	c.rc.ReleaseMemory(n)
}
