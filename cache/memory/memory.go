package memory

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shruggr/geotrie/kvstore"
)

// Cache is an in-memory LRU cache for trie blobs, bounded both by entry
// count and by total bytes
type Cache struct {
	lru      *lru.Cache[kvstore.Hash, []byte]
	mu       sync.Mutex
	bytes    int
	maxBytes int
}

// New creates a new LRU cache holding at most size blobs and, when
// maxBytes > 0, at most maxBytes bytes of blobs
func New(size int, maxBytes int) (*Cache, error) {
	c := &Cache{maxBytes: maxBytes}
	l, err := lru.NewWithEvict(size, func(_ kvstore.Hash, blob []byte) {
		c.bytes -= len(blob)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Get retrieves a cached blob
func (c *Cache) Get(hash kvstore.Hash) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Get(hash)
}

// Put stores a blob, evicting the least recently used ones to stay within
// the byte budget. A blob larger than the whole budget is not cached.
func (c *Cache) Put(hash kvstore.Hash, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxBytes > 0 && len(blob) > c.maxBytes {
		return nil
	}
	if old, ok := c.lru.Peek(hash); ok {
		c.bytes -= len(old)
	}
	c.lru.Add(hash, blob)
	c.bytes += len(blob)

	for c.maxBytes > 0 && c.bytes > c.maxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
	return nil
}

// Delete removes a cached blob
func (c *Cache) Delete(hash kvstore.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(hash)
	return nil
}

// Clear removes all cached entries
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	return nil
}

// Bytes returns the total size of the cached blobs
func (c *Cache) Bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.bytes
}

// Len returns the number of cached blobs
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}
