package portaros

import "sync"

// defaultCacheCapacity bounds the callback and resolver caches. When a cache
// is full the oldest-inserted entry is evicted to make room.
const defaultCacheCapacity = 1024

// fifoCache is a bounded map with insertion-order eviction: when an insert
// would exceed capacity, the single oldest surviving entry is removed first.
// Eviction order is strictly FIFO — overwriting an existing key does not
// refresh its position, and reads never promote an entry.
//
// Reads take a shared lock so concurrent dispatches can look up callbacks in
// parallel; inserts and evictions are exclusive. Two connections racing to
// insert the same key resolve as last-writer-wins, which is safe because both
// writers compute equivalent entries for a given path.
type fifoCache[V any] struct {
	mu      sync.RWMutex
	cap     int
	entries map[string]V
	order   []string
	onEvict func(key string)
}

func newFIFOCache[V any](capacity int) *fifoCache[V] {
	if capacity < 1 {
		capacity = defaultCacheCapacity
	}
	return &fifoCache[V]{
		cap:     capacity,
		entries: make(map[string]V, capacity),
		order:   make([]string, 0, capacity),
	}
}

func (c *fifoCache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *fifoCache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}

	if len(c.entries) >= c.cap {
		oldest := c.order[0]
		copy(c.order, c.order[1:])
		c.order = c.order[:len(c.order)-1]
		delete(c.entries, oldest)
		if c.onEvict != nil {
			c.onEvict(oldest)
		}
	}

	c.entries[key] = value
	c.order = append(c.order, key)
}

func (c *fifoCache[V]) remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *fifoCache[V]) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]V, c.cap)
	c.order = c.order[:0]
}

func (c *fifoCache[V]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
