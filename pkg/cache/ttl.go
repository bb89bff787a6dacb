package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe LRU cache with a per-cache TTL. Entries older
// than the TTL are never served: an expired hit is treated as a miss and the
// entry is dropped. When the cache is full, the least recently used entry is
// evicted.
type TTLCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
	now      func() time.Time
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock injects the time source, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTTLCache creates a TTL-aware LRU cache. Capacity and ttl must be
// positive, otherwise it panics: a mis-sized cache is a programming error
// that should fail at startup.
func NewTTLCache[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *TTLCache[K, V] {
	if capacity <= 0 {
		panic("cache capacity must be positive")
	}
	if ttl <= 0 {
		panic("cache ttl must be positive")
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	return &TTLCache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
		now:      o.now,
	}
}

// TTL returns the cache's configured entry lifetime.
func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached value if present and not expired, marking it as
// recently used. An expired entry is removed and reported as a miss.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[K, V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.eviction.MoveToFront(elem)
	return e.value, true
}

// Set stores a value with a fresh TTL, evicting the least recently used
// entry when the cache is at capacity.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		e := elem.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		return
	}

	elem := c.eviction.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes an entry, reporting whether it existed.
func (c *TTLCache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

// Len returns the number of stored entries, including any not yet reaped
// expired ones.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Clear removes all entries.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

func (c *TTLCache[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	e := elem.Value.(*entry[K, V])
	delete(c.items, e.key)
}
