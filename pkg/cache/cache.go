// Package cache implements a size-aware LRU block cache, generalized from
// the teacher's pkg/cache.LRUBlobCache (keyed by gitlib.Hash over git blob
// data) into a generic map[K]*entry cache over any comparable key and any
// value whose byte size can be measured by an injected Sizer.
package cache

import (
	"sync"
	"sync/atomic"
)

// DefaultSize is the default maximum byte size for a BlockCache (256 MB),
// carried over from the teacher's DefaultLRUCacheSize.
const DefaultSize = 256 * 1024 * 1024

const bytesPerKB = 1024.0

// Sizer measures the byte footprint of a cached value, standing in for the
// teacher's hardcoded len(blob.Data) now that the cached value type is
// generic.
type Sizer[V any] func(V) int64

// evictionSampleSize is the number of LRU-tail candidates sampled for
// size-aware eviction, carried over unchanged from the teacher (sampling
// trades exactness for an O(k) eviction decision instead of an O(n) scan).
const evictionSampleSize = 5

// BlockCache is a size-bounded LRU cache with size-aware eviction: among a
// sample of the least-recently-used entries, the one with the lowest
// eviction cost (see entry.evictionCost) is evicted first, preferring to
// keep small, frequently-accessed entries over large, rarely-accessed ones.
type BlockCache[K comparable, V any] struct {
	mu          sync.RWMutex
	entries     map[K]*entry[K, V]
	head        *entry[K, V]
	tail        *entry[K, V]
	maxSize     int64
	currentSize int64
	sizer       Sizer[V]

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key         K
	val         V
	size        int64
	accessCount int64
	prev, next  *entry[K, V]
}

func (e *entry[K, V]) evictionCost() float64 {
	if e.size == 0 {
		return float64(e.accessCount)
	}

	sizeKB := float64(e.size) / bytesPerKB
	if sizeKB < 1 {
		sizeKB = 1
	}

	return float64(e.accessCount) / sizeKB
}

// New creates a BlockCache with the given maximum byte size (DefaultSize if
// maxSize <= 0) and a Sizer used to measure each value's footprint.
func New[K comparable, V any](maxSize int64, sizer Sizer[V]) *BlockCache[K, V] {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}

	return &BlockCache[K, V]{
		entries: make(map[K]*entry[K, V]),
		maxSize: maxSize,
		sizer:   sizer,
	}
}

// Get retrieves a value from the cache.
func (c *BlockCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		var zero V

		return zero, false
	}

	c.hits.Add(1)
	e.accessCount++
	c.moveToFront(e)

	return e.val, true
}

// Put inserts or refreshes a value in the cache, evicting entries under
// size-aware eviction until the new value fits under maxSize. Values larger
// than the entire cache are never cached.
func (c *BlockCache[K, V]) Put(key K, val V) {
	size := c.sizer(val)

	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeFromList(e)
		c.currentSize -= e.size

		for c.currentSize+size > c.maxSize && c.tail != nil {
			c.evictLowestCost()
		}

		e.val = val
		e.accessCount++
		e.size = size
		c.currentSize += size
		c.addToFront(e)

		return
	}

	for c.currentSize+size > c.maxSize && c.tail != nil {
		c.evictLowestCost()
	}

	e := &entry[K, V]{key: key, val: val, size: size, accessCount: 1}
	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
}

// Stats reports cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache's performance counters.
func (c *BlockCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.currentSize,
		MaxSize:     c.maxSize,
	}
}

// Clear empties the cache.
func (c *BlockCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[K, V])
	c.head, c.tail = nil, nil
	c.currentSize = 0
}

func (c *BlockCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}

	c.removeFromList(e)
	c.addToFront(e)
}

func (c *BlockCache[K, V]) addToFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head

	if c.head != nil {
		c.head.prev = e
	}

	c.head = e

	if c.tail == nil {
		c.tail = e
	}
}

func (c *BlockCache[K, V]) removeFromList(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

// evictLowestCost samples up to evictionSampleSize entries from the LRU
// tail and evicts whichever has the lowest eviction cost.
func (c *BlockCache[K, V]) evictLowestCost() {
	if c.tail == nil {
		return
	}

	var candidates [evictionSampleSize]*entry[K, V]

	count := 0
	e := c.tail

	for e != nil && count < evictionSampleSize {
		candidates[count] = e
		count++
		e = e.prev
	}

	victim := candidates[0]
	lowestCost := victim.evictionCost()

	for i := 1; i < count; i++ {
		cost := candidates[i].evictionCost()
		if cost < lowestCost {
			lowestCost = cost
			victim = candidates[i]
		}
	}

	c.removeFromList(victim)
	delete(c.entries, victim.key)
	c.currentSize -= victim.size
}
