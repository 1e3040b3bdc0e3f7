// Package cache holds recently sent messages so their content can still be
// recovered when the host's own short-lived store has already dropped them.
package cache

import (
	"sync"

	"msgvault/pkg/models"
)

// Key builds the composite cache key for a message.
func Key(channelID, messageID string) string {
	return channelID + "," + messageID
}

// Cache is a capacity-bounded, insertion-ordered map. When full, inserting a
// new key evicts the least-recently-inserted entry (strict FIFO, not
// access-order). Overwriting an existing key keeps its original position.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*models.Message
	order    []string
}

// New returns a cache bounded to capacity entries. A non-positive capacity
// falls back to 1000, the host default.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*models.Message, capacity),
	}
}

// Set stores value under key, evicting the oldest entry when at capacity.
// Eviction never errors; a full cache simply rolls over.
func (c *Cache) Set(key string, value *models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = value
	c.order = append(c.order, key)
}

// Get returns the cached value for key, or nil when absent.
func (c *Cache) Get(key string) *models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Cap returns the configured capacity.
func (c *Cache) Cap() int { return c.capacity }
