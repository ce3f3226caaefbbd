// Package cache provides the bounded in-process caches used across the
// ingestion pipeline and a registry that gives them uniform clear and
// pressure-eviction hooks.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of one cache's counters.
type Stats struct {
	Name      string  `json:"name"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Expired   uint64  `json:"expired"`
	HitRatio  float64 `json:"hit_ratio"`
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time // zero means no TTL
}

// LRU is a size-bounded key/value store with optional per-entry TTL.
// A single mutex guards all state; contention is negligible next to the
// network I/O the cached values front.
type LRU struct {
	name       string
	capacity   int
	defaultTTL time.Duration

	mu        sync.Mutex
	order     *list.List // front = most recent
	items     map[string]*list.Element
	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64
}

// NewLRU creates a cache holding at most capacity entries. defaultTTL
// of zero disables expiry unless Put overrides it.
func NewLRU(name string, capacity int, defaultTTL time.Duration) *LRU {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU{
		name:       name,
		capacity:   capacity,
		defaultTTL: defaultTTL,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the stored value if present and not expired, updating
// recency.
func (c *LRU) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	ent := elem.Value.(*entry)
	if !ent.expiresAt.IsZero() && time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.expired++
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return ent.value, true
}

// Put inserts or updates a value with the default TTL.
func (c *LRU) Put(key string, value any) {
	c.PutTTL(key, value, c.defaultTTL)
}

// PutTTL inserts or updates a value with an explicit TTL; ttl of zero
// means the entry never expires.
func (c *LRU) PutTTL(key string, value any, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
	}
}

// Clear drops every entry and returns how many were removed.
func (c *LRU) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.order.Len()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	return n
}

// Size returns the current entry count.
func (c *LRU) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Name returns the cache's registered name.
func (c *LRU) Name() string {
	return c.name
}

// Stats returns a snapshot of the counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Name:      c.name,
		Size:      c.order.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRatio = float64(c.hits) / float64(total)
	}
	return s
}

// removeElement unlinks an entry. Caller must hold the lock.
func (c *LRU) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}
