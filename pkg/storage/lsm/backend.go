package lsm

import "github.com/nelknet/dbspgo/pkg/zset"

// Delta is a single (K,V) weight contribution to apply in a batch.
type Delta[K comparable, V comparable] struct {
	Key    K
	Val    V
	Weight zset.Weight
}

// Stats reports cumulative activity counters for a backend. This package
// does not export them to any metrics system.
type Stats struct {
	EntriesWritten  int64
	BytesWritten    int64
	BytesRead       int64
	CompactionCount int64
}

// Backend is the physical key/value storage surface that storage/temporal
// builds traces on top of (spec.md §4.3.2). Every method that writes
// accumulates weights additively and drops net-zero (K,V) entries, which is
// how this layer satisfies "merge-on-read cancellation" as an observable
// property without the underlying store supporting custom merge operators.
type Backend[K comparable, V comparable] interface {
	// StoreBatch applies deltas, summing each (K,V)'s weight into whatever is
	// already stored and deleting entries whose summed weight becomes zero.
	StoreBatch(deltas []Delta[K, V]) error
	// StoreBatchWithFlush is StoreBatch followed by a synchronous flush to
	// stable storage before returning.
	StoreBatchWithFlush(deltas []Delta[K, V]) error
	// Get returns some (v,w) with w != 0 stored under k, or ok=false if no
	// such entry exists. For a K with more than one stored V, which one comes
	// back is unspecified; callers wanting a specific V or every V must use
	// GetIterator/GetRangeIterator instead (spec.md §9 Open Questions).
	Get(k K) (V, zset.Weight, bool, error)
	// GetIterator enumerates every stored entry, sorted ascending by (K,V).
	GetIterator() (RawIterator[K, V], error)
	// GetRangeIterator enumerates every stored entry whose K falls within
	// [kFrom, kTo] inclusive. A nil bound means unbounded on that side; a
	// kFrom that sorts after kTo yields an empty iterator.
	GetRangeIterator(kFrom, kTo *K) (RawIterator[K, V], error)
	// Compact merges all levels, folding same-(K,V) weights and dropping
	// entries whose summed weight is zero.
	Compact() error
	// GetStats returns a snapshot of cumulative activity counters.
	GetStats() Stats
	// Dispose closes the backend. A subsequent LevelBackend opened on the
	// same DataPath recovers identical logical state.
	Dispose() error
}

// RawEntry is a decoded (K,V,weight) triple as returned by a RawIterator.
type RawEntry[K comparable, V comparable] struct {
	Key    K
	Val    V
	Weight zset.Weight
}

// RangeScanner is an optional capability: a byte-range scan bounded by raw
// encoded-key bytes rather than K values. storage/temporal uses this to scan
// a contiguous run of time buckets, a boundary that doesn't line up with any
// single K's Prefix; Backend's own GetRangeIterator only bounds by whole K
// values.
type RangeScanner[K comparable, V comparable] interface {
	// ScanRaw iterates every entry whose codec-encoded key lies in
	// [startKey, limitKey). A nil startKey means "from the beginning"; a nil
	// limitKey means "to the end".
	ScanRaw(startKey, limitKey []byte) (RawIterator[K, V], error)
}

// RawIterator walks decoded (K,V,weight) triples in key order.
type RawIterator[K comparable, V comparable] interface {
	Next() bool
	Entry() RawEntry[K, V]
	Error() error
	Release()
}
