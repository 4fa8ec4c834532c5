package blob

import (
	"bytes"
	"container/list"
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache limits used when NewCache is given zero.
const (
	DefaultCacheEntries = 256
	DefaultCacheBytes   = 64 << 20
)

// Cache wraps an Object and keeps recently read ranges in memory, bounded by
// both entry count and total bytes. Ranges larger than the byte budget are
// never kept. Concurrent reads of the same range share a single fetch.
type Cache struct {
	inner Object

	flight singleflight.Group

	mu       sync.Mutex
	max      int
	maxBytes int64
	bytes    int64
	entries  map[string]*list.Element
	lru     *list.List

	hits, misses uint64
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewCache wraps inner, keeping at most maxEntries ranges holding at most
// maxBytes in total. Zero or negative limits select the defaults.
func NewCache(inner Object, maxEntries int, maxBytes int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &Cache{
		inner:    inner,
		max:      maxEntries,
		maxBytes: maxBytes,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// ReadRange returns the bytes of the range, fetching them at most once while
// they stay cached. Failed fetches are not cached.
func (c *Cache) ReadRange(ctx context.Context, offset, length int64) ([]byte, error) {
	key := fmt.Sprintf("%d:%d", offset, length)
	if data, ok := c.get(key); ok {
		return data, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		if data, ok := c.get(key); ok {
			return data, nil
		}
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()

		// The fetch is shared by every waiter.
		data, err := ReadRange(context.WithoutCancel(ctx), c.inner, offset, length)
		if err != nil {
			return nil, err
		}
		c.put(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

func (c *Cache) put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		return
	}
	size := int64(len(data))
	if size > c.maxBytes {
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, data: data})
	c.bytes += size
	for c.lru.Len() > c.max || c.bytes > c.maxBytes {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		e := oldest.Value.(*cacheEntry)
		delete(c.entries, e.key)
		c.bytes -= int64(len(e.data))
	}
}

// Held returns the number of ranges and bytes currently kept.
func (c *Cache) Held() (entries int, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len(), c.bytes
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	data, err := c.ReadRange(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *Cache) Size(ctx context.Context) (int64, error) {
	return c.inner.Size(ctx)
}

func (c *Cache) Close() error {
	return c.inner.Close()
}
