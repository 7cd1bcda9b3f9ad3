package hybrid

import (
	"sync"

	"github.com/nelknet/dbspgo/pkg/cache"
	"github.com/nelknet/dbspgo/pkg/izset"
	"github.com/nelknet/dbspgo/pkg/storage/lsm"
	"github.com/nelknet/dbspgo/pkg/zset"
)

// EntrySizer estimates the byte footprint of a single delta, used both to
// decide when the in-memory buffer has grown past its budget and to size
// cached per-key read results.
type EntrySizer[K comparable, V comparable] func(lsm.Delta[K, V]) int64

// Backend wraps an lsm.Backend with an in-memory write buffer and a
// read-through block cache (spec.md §4.3.4). Writes accumulate in the
// buffer until either a single batch trips the SpillCoordinator or the
// buffer's estimated size reaches budget.WriteBufferBytes (PlanSpill's
// write-buffer share), at which point the whole buffer is flushed to disk
// in one StoreBatchWithFlush. Reads merge buffered weight on top of disk weight for
// the same (K,V), never replacing it, so an unflushed write is visible
// immediately without waiting on the next flush.
type Backend[K comparable, V comparable] struct {
	mu sync.Mutex

	disk lsm.Backend[K, V]
	// cache holds disk-only (v, weight) slices per k. It never needs
	// per-key invalidation on write: reads always merge the buffer back in
	// on top of whatever's cached, and a flush (the only thing that changes
	// disk state) calls Clear() itself.
	cache  *cache.BlockCache[K, []zset.Entry[V]]
	sizer  EntrySizer[K, V]
	coord  SpillCoordinator
	budget SpillBudget

	buffer        *izset.IndexedZSet[K, V]
	bufferedBytes int64
}

// Open wraps disk with an in-memory buffer sized by budget and a read-through
// cache sized by budget.BlockCacheBytes, spilling early on any batch that
// coord.ShouldSpill reports.
func Open[K comparable, V comparable](disk lsm.Backend[K, V], sizer EntrySizer[K, V], coord SpillCoordinator, budget SpillBudget) *Backend[K, V] {
	return &Backend[K, V]{
		disk:   disk,
		cache:  cache.New[K, []zset.Entry[V]](budget.BlockCacheBytes, perEntryCacheSizer[V]),
		sizer:  sizer,
		coord:  coord,
		budget: budget,
		buffer: izset.Empty[K, V](),
	}
}

// perEntryCacheSizer approximates a cached per-key result set's footprint as
// a fixed per-entry cost; the exact value footprint isn't known generically,
// so this mirrors the teacher's cache package in spirit (size-aware
// eviction) without pretending to measure V precisely.
func perEntryCacheSizer[V comparable](entries []zset.Entry[V]) int64 {
	const assumedEntryBytes = 64
	return int64(len(entries)) * assumedEntryBytes
}

// StoreBatch buffers deltas in memory, flushing to disk once the buffer
// crosses budget or coord vetoes this batch outright.
func (b *Backend[K, V]) StoreBatch(deltas []lsm.Delta[K, V]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var batchBytes int64

	var bb izset.Builder[K, V]

	for _, d := range deltas {
		bb.AddWeight(d.Key, d.Val, d.Weight)
		batchBytes += b.sizer(d)
	}

	b.buffer = mergeIndexed(b.buffer, bb.ToIndexedZSet())
	b.bufferedBytes += batchBytes

	spillLimit := b.budget.WriteBufferBytes
	if spillLimit <= 0 {
		spillLimit = DefaultSize
	}

	if b.coord != nil && b.coord.ShouldSpill(batchBytes) {
		return b.flushLocked()
	}

	if b.bufferedBytes >= spillLimit {
		return b.flushLocked()
	}

	return nil
}

// DefaultSize is the fallback write-buffer budget used when PlanSpill
// produced a non-positive WriteBufferBytes (e.g. MaxMemoryBytes was 0).
const DefaultSize = 16 * 1024 * 1024

// StoreBatchWithFlush buffers deltas like StoreBatch, then forces an
// immediate flush regardless of accumulated size.
func (b *Backend[K, V]) StoreBatchWithFlush(deltas []lsm.Delta[K, V]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var bb izset.Builder[K, V]
	for _, d := range deltas {
		bb.AddWeight(d.Key, d.Val, d.Weight)
	}

	b.buffer = mergeIndexed(b.buffer, bb.ToIndexedZSet())

	return b.flushLocked()
}

// Flush forces the in-memory buffer to disk even if it's under budget.
func (b *Backend[K, V]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.flushLocked()
}

func (b *Backend[K, V]) flushLocked() error {
	if b.buffer.Len() == 0 {
		return nil
	}

	var deltas []lsm.Delta[K, V]

	b.buffer.Iterate(func(k K, v V, w zset.Weight) {
		deltas = append(deltas, lsm.Delta[K, V]{Key: k, Val: v, Weight: w})
	})

	if err := b.disk.StoreBatchWithFlush(deltas); err != nil {
		return err
	}

	b.buffer = izset.Empty[K, V]()
	b.bufferedBytes = 0
	b.cache.Clear()

	return nil
}

// Get returns some (v,w) with w != 0 stored under k, merging disk and
// buffered weight for that k (the per-k case doesn't need cross-key
// ordering, so unlike GetIterator/GetRangeIterator it can merge in place
// without flushing first).
func (b *Backend[K, V]) Get(k K) (V, zset.Weight, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero V

	diskEntries, err := b.readDiskLocked(k)
	if err != nil {
		return zero, 0, false, err
	}

	var merge izset.Builder[K, V]

	for _, e := range diskEntries {
		merge.AddWeight(k, e.Key, e.Weight)
	}

	for _, e := range b.buffer.PerKey(k) {
		merge.AddWeight(k, e.Key, e.Weight)
	}

	merged := merge.ToIndexedZSet().PerKey(k)
	if len(merged) == 0 {
		return zero, 0, false, nil
	}

	return merged[0].Key, merged[0].Weight, true, nil
}

// GetIterator returns every stored entry, sorted ascending by (K,V). The
// in-memory buffer only preserves insertion order (izset.IndexedZSet has no
// K ordering to merge against the disk's sorted stream generically), so a
// whole-store scan flushes the buffer to disk first and then delegates
// entirely to disk, the same flush-then-delegate pattern Compact already
// uses below.
func (b *Backend[K, V]) GetIterator() (lsm.RawIterator[K, V], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.flushLocked(); err != nil {
		return nil, err
	}

	return b.disk.GetIterator()
}

// GetRangeIterator is GetIterator bounded to [kFrom, kTo]; see GetIterator
// for why this flushes before delegating to disk.
func (b *Backend[K, V]) GetRangeIterator(kFrom, kTo *K) (lsm.RawIterator[K, V], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.flushLocked(); err != nil {
		return nil, err
	}

	return b.disk.GetRangeIterator(kFrom, kTo)
}

// Compact forwards to the disk backend after flushing any buffered writes,
// so compaction never observes stale pre-buffer state.
func (b *Backend[K, V]) Compact() error {
	b.mu.Lock()

	if err := b.flushLocked(); err != nil {
		b.mu.Unlock()
		return err
	}

	b.mu.Unlock()

	return b.disk.Compact()
}

// GetStats reports the disk backend's cumulative counters.
func (b *Backend[K, V]) GetStats() lsm.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.disk.GetStats()
}

// Dispose flushes any buffered writes and disposes the disk backend.
func (b *Backend[K, V]) Dispose() error {
	b.mu.Lock()

	if err := b.flushLocked(); err != nil {
		b.mu.Unlock()
		return err
	}

	b.mu.Unlock()

	return b.disk.Dispose()
}

func (b *Backend[K, V]) readDiskLocked(k K) ([]zset.Entry[V], error) {
	if cached, ok := b.cache.Get(k); ok {
		return cached, nil
	}

	iter, err := b.disk.GetRangeIterator(&k, &k)
	if err != nil {
		return nil, err
	}

	defer iter.Release()

	var entries []zset.Entry[V]

	for iter.Next() {
		e := iter.Entry()
		entries = append(entries, zset.Entry[V]{Key: e.Val, Weight: e.Weight})
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	b.cache.Put(k, entries)

	return entries, nil
}

// mergeIndexed folds b into a, returning a new IndexedZSet with their
// weights summed per (k,v).
func mergeIndexed[K comparable, V comparable](a, b *izset.IndexedZSet[K, V]) *izset.IndexedZSet[K, V] {
	var merged izset.Builder[K, V]

	a.Iterate(func(k K, v V, w zset.Weight) {
		merged.AddWeight(k, v, w)
	})
	b.Iterate(func(k K, v V, w zset.Weight) {
		merged.AddWeight(k, v, w)
	})

	return merged.ToIndexedZSet()
}
