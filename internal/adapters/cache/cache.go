// Package cache holds recently computed values in memory.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Cache is a bounded key/value store with least-recently-used eviction.
type Cache[V any] interface {
	// Get returns the value for key and marks it as recently used.
	Get(key string) (V, bool)

	// Add stores value under key, evicting the least recently used entry
	// when the cache is full.
	Add(key string, value V)

	// Remove drops key if present.
	Remove(key string)

	Len() int64
	Stats() Stats
}

// Stats counts lookups since creation.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int64 `json:"size"`
	Capacity  int   `json:"capacity"`
}

type entry[V any] struct {
	key   string
	value V
}

// inMemoryCache keeps entries in a list ordered by recency, front first.
type inMemoryCache[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int

	size      atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewInMemory creates a cache. A max size of zero or less disables it: every
// Get misses and Add is a no-op.
func NewInMemory[V any](opts ...Option) Cache[V] {
	cfg := config{maxSize: 1024}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &inMemoryCache[V]{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.maxSize,
	}
}

func (c *inMemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits.Add(1)
	return el.Value.(*entry[V]).value, true
}

func (c *inMemoryCache[V]) Add(key string, value V) {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).value = value
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value})
	c.size.Add(1)
}

func (c *inMemoryCache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
		c.size.Add(-1)
	}
}

// evictOldest must be called with c.mu held.
func (c *inMemoryCache[V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
	c.size.Add(-1)
	c.evictions.Add(1)
}

func (c *inMemoryCache[V]) Len() int64 {
	return c.size.Load()
}

func (c *inMemoryCache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.size.Load(),
		Capacity:  c.maxSize,
	}
}
