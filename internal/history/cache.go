// Package history keeps a bounded, most-recent-first record of scanned
// products for session continuity. Persistence is the store's concern;
// this cache lives and dies with the session.
package history

import (
	"sync"

	"github.com/safeplate/safescan/internal/model"
)

// DefaultCapacity is the number of products retained per session.
const DefaultCapacity = 10

// Cache is a fixed-capacity, mutex-guarded MRU list of products.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  []model.Product
}

// New creates a Cache with the given capacity. A capacity of zero or less
// falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{capacity: capacity}
}

// Record inserts the product at the front. A product already present (by
// ID) is moved to the front rather than duplicated; the oldest entry is
// evicted beyond capacity.
func (c *Cache) Record(p model.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(p.ID)
	c.entries = append([]model.Product{p}, c.entries...)
	if len(c.entries) > c.capacity {
		c.entries = c.entries[:c.capacity]
	}
}

// List returns the cached products, most recent first.
func (c *Cache) List() []model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Product, len(c.entries))
	copy(out, c.entries)
	return out
}

// Remove deletes the product with the given ID, if present.
func (c *Cache) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(productID)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// Len returns the number of cached products.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(productID string) {
	for i, e := range c.entries {
		if e.ID == productID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}
