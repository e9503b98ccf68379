// Package cache implements the two-tier raw-document cache: a bounded
// in-process LRU in front of a shared Redis tier. Only successful fetch
// results are ever stored; absence is the miss signal.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry struct {
	key       string
	value     []byte
	cachedAt  time.Time
	expiresAt time.Time
}

// LRU is the L1 tier: a bounded least-recently-used cache with lazy TTL
// expiry on read. All mutation happens under one mutex so the recency list
// and the index never diverge under concurrent access.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

// LRUStats is a snapshot of the L1 tier for observability. Counters are
// informational, not authoritative data.
type LRUStats struct {
	Entries     int     `json:"entries"`
	Capacity    int     `json:"capacity"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}

// NewLRU creates an empty LRU bounded to capacity entries.
func NewLRU(capacity int) *LRU {
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached value and promotes the entry to most recently
// used. An expired entry is discarded and reported as a miss rather than
// served stale.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*lruEntry)
	if c.now().After(entry.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Set inserts or replaces an entry. When the insert would exceed capacity,
// the least-recently-used entry is evicted (O(1) via the back of the list).
func (c *LRU) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.cachedAt = now
		entry.expiresAt = now.Add(ttl)
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
			c.evictions++
		}
	}

	elem := c.order.PushFront(&lruEntry{
		key:       key,
		value:     value,
		cachedAt:  now,
		expiresAt: now.Add(ttl),
	})
	c.items[key] = elem
}

// Clear empties the cache and returns the number of entries removed.
func (c *LRU) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.order.Len()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	return count
}

// SweepExpired removes entries whose TTL has lapsed and returns how many
// were dropped. Expiry is otherwise lazy, so long-idle entries linger until
// a read or this sweep touches them.
func (c *LRU) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*lruEntry).expiresAt) {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Len returns the current entry count.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of cache counters.
func (c *LRU) Stats() LRUStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := LRUStats{
		Entries:   c.order.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}
	if c.capacity > 0 {
		st.Utilization = float64(st.Entries) / float64(c.capacity)
	}
	return st
}

// removeLocked unlinks an element from both structures. Caller holds c.mu.
func (c *LRU) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruEntry).key)
}
