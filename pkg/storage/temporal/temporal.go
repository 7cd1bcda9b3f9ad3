// Package temporal implements the temporal trace: a time-indexed view over
// storage/lsm that answers "what was the state of this Z-set as of logical
// time t" (spec.md §4.3.1, §4.3.3).
package temporal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nelknet/dbspgo/pkg/izset"
	"github.com/nelknet/dbspgo/pkg/storage/lsm"
	"github.com/nelknet/dbspgo/pkg/zset"
)

// Triple is a single (K,V,weight) contribution inserted at a logical time.
type Triple[K comparable, V comparable] struct {
	Key    K
	Val    V
	Weight zset.Weight
}

// TimeBucket is one (t, entries) pair as returned by QueryTimeRange.
type TimeBucket[K comparable, V comparable] struct {
	Time    int64
	Entries []Triple[K, V]
}

// ErrNonMonotonicInsert is returned by InsertBatch when t is strictly less
// than the highest time previously inserted (spec.md §4.3.1: "t must be >=
// any previously inserted time").
type ErrNonMonotonicInsert struct {
	Time, MaxInserted int64
}

func (e *ErrNonMonotonicInsert) Error() string {
	return fmt.Sprintf("temporal: insert at t=%d is below the monotonic frontier (max inserted t=%d)", e.Time, e.MaxInserted)
}

// bucketBackend is the subset of lsm.LevelBackend's capability this package
// needs: batched writes keyed by (bucket,K) and the raw range scan that lets
// QueryAtTime read every K in a contiguous run of buckets at once.
type bucketBackend[K comparable, V comparable] interface {
	lsm.Backend[lsm.BucketKey[K], V]
	lsm.RangeScanner[lsm.BucketKey[K], V]
}

// Trace is a temporal trace over (K,V) pairs, physically stored as an LSM
// backend keyed by (bucket,K,V) where bucket is the logical insertion time,
// plus an in-memory spine recording which bucket tags have been written.
type Trace[K comparable, V comparable] struct {
	mu       sync.Mutex
	backend  bucketBackend[K, V]
	spine    []int64 // sorted, strictly increasing bucket tags seen so far
	maxT     int64
	hasAny   bool
	frontier int64
}

// Open opens a temporal trace backed by a goleveldb LevelBackend at
// dataPath, using innerCodec to encode the (K,V) portion of each entry.
func Open[K comparable, V comparable](dataPath string, innerCodec lsm.KeyCodec[K, V]) (*Trace[K, V], error) {
	backend, err := lsm.OpenLevelBackend[lsm.BucketKey[K], V](dataPath, lsm.BucketKeyCodec[K, V]{Inner: innerCodec})
	if err != nil {
		return nil, fmt.Errorf("temporal: open: %w", err)
	}

	return &Trace[K, V]{backend: backend}, nil
}

// InsertBatch atomically appends triples at logical time t. Entries within
// the batch sharing a (K,V) sum their weights; net-zero results are dropped
// by the underlying backend's accumulate-on-write merge.
func (tr *Trace[K, V]) InsertBatch(t int64, triples []Triple[K, V]) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.hasAny && t < tr.maxT {
		return &ErrNonMonotonicInsert{Time: t, MaxInserted: tr.maxT}
	}

	deltas := make([]lsm.Delta[lsm.BucketKey[K], V], len(triples))
	for i, tp := range triples {
		deltas[i] = lsm.Delta[lsm.BucketKey[K], V]{
			Key:    lsm.BucketKey[K]{Bucket: t, Key: tp.Key},
			Val:    tp.Val,
			Weight: tp.Weight,
		}
	}

	if err := tr.backend.StoreBatch(deltas); err != nil {
		return fmt.Errorf("temporal: insert batch at t=%d: %w", t, err)
	}

	tr.recordBucket(t)

	return nil
}

// recordBucket inserts t into the sorted spine if not already present.
// Caller must hold mu.
func (tr *Trace[K, V]) recordBucket(t int64) {
	if !tr.hasAny || t > tr.maxT {
		tr.maxT = t
		tr.hasAny = true
	}

	i := sort.Search(len(tr.spine), func(i int) bool { return tr.spine[i] >= t })
	if i < len(tr.spine) && tr.spine[i] == t {
		return
	}

	tr.spine = append(tr.spine, 0)
	copy(tr.spine[i+1:], tr.spine[i:])
	tr.spine[i] = t
}

// QueryAtTime returns the sum of all batches with timestamp <= t, as a
// ZSet over Pair[K,V] (§4.3.1 snapshot semantics).
func (tr *Trace[K, V]) QueryAtTime(t int64) (*zset.ZSet[izset.Pair[K, V]], error) {
	limit := upperBoundExclusive(t)

	iter, err := tr.backend.ScanRaw(nil, limit)
	if err != nil {
		return nil, fmt.Errorf("temporal: query at time %d: %w", t, err)
	}
	defer iter.Release()

	var b zset.Builder[izset.Pair[K, V]]

	for iter.Next() {
		e := iter.Entry()
		b.AddWeight(izset.Pair[K, V]{Key: e.Key.Key, Val: e.Val}, e.Weight)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("temporal: query at time %d: %w", t, err)
	}

	return b.ToZSet()
}

// upperBoundExclusive returns a byte bound that includes every bucket <= t
// and excludes every bucket > t, or nil (no upper bound) when t is the
// maximum representable bucket.
func upperBoundExclusive(t int64) []byte {
	const maxInt64 = int64(^uint64(0) >> 1)
	if t == maxInt64 {
		return nil
	}

	return lsm.BucketBoundary(t + 1)
}

// QueryTimeRange returns the per-time buckets whose tag falls within
// [tLo, tHi] inclusive, in increasing time order.
func (tr *Trace[K, V]) QueryTimeRange(tLo, tHi int64) ([]TimeBucket[K, V], error) {
	tr.mu.Lock()
	bucketsInRange := make([]int64, 0)
	for _, t := range tr.spine {
		if t >= tLo && t <= tHi {
			bucketsInRange = append(bucketsInRange, t)
		}
	}
	tr.mu.Unlock()

	out := make([]TimeBucket[K, V], 0, len(bucketsInRange))

	for _, t := range bucketsInRange {
		start := lsm.BucketBoundary(t)
		limit := upperBoundExclusive(t)

		iter, err := tr.backend.ScanRaw(start, limit)
		if err != nil {
			return nil, fmt.Errorf("temporal: query time range: %w", err)
		}

		var entries []Triple[K, V]
		for iter.Next() {
			e := iter.Entry()
			entries = append(entries, Triple[K, V]{Key: e.Key.Key, Val: e.Val, Weight: e.Weight})
		}

		err = iter.Error()
		iter.Release()

		if err != nil {
			return nil, fmt.Errorf("temporal: query time range: %w", err)
		}

		out = append(out, TimeBucket[K, V]{Time: t, Entries: entries})
	}

	return out, nil
}

// Compact collapses all buckets with timestamp <= upTo into a single bucket
// tagged upTo (§4.3.3). QueryAtTime at any t >= upTo returns the same result
// as before, because the fused bucket carries the full sum of the buckets it
// replaces and buckets above upTo are left as they are. The replaced buckets
// are removed, so QueryAtTime at a t below upTo no longer includes their
// contributions.
func (tr *Trace[K, V]) Compact(upTo int64) error {
	limit := upperBoundExclusive(upTo)

	iter, err := tr.backend.ScanRaw(nil, limit)
	if err != nil {
		return fmt.Errorf("temporal: compact up to %d: %w", upTo, err)
	}

	type keyed struct {
		key lsm.BucketKey[K]
		val V
	}

	fused := make(map[keyed]zset.Weight)
	order := make([]keyed, 0)

	for iter.Next() {
		e := iter.Entry()
		kv := keyed{key: lsm.BucketKey[K]{Bucket: upTo, Key: e.Key.Key}, val: e.Val}

		if _, ok := fused[kv]; !ok {
			order = append(order, kv)
		}

		fused[kv] += e.Weight
	}

	err = iter.Error()
	iter.Release()

	if err != nil {
		return fmt.Errorf("temporal: compact up to %d: %w", upTo, err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	// Remove every pre-existing bucket <= upTo from the backend by writing
	// the negation of its current stored weight, then write the fused
	// bucket's totals. Both are expressed as StoreBatch deltas so the
	// backend's own accumulate-on-write merge does the work.
	var negations []lsm.Delta[lsm.BucketKey[K], V]

	for _, t := range tr.spine {
		if t > upTo {
			continue
		}

		start := lsm.BucketBoundary(t)
		bucketLimit := upperBoundExclusive(t)

		bIter, err := tr.backend.ScanRaw(start, bucketLimit)
		if err != nil {
			return fmt.Errorf("temporal: compact up to %d: %w", upTo, err)
		}

		for bIter.Next() {
			e := bIter.Entry()
			negations = append(negations, lsm.Delta[lsm.BucketKey[K], V]{Key: e.Key, Val: e.Val, Weight: -e.Weight})
		}

		bErr := bIter.Error()
		bIter.Release()

		if bErr != nil {
			return fmt.Errorf("temporal: compact up to %d: %w", upTo, bErr)
		}
	}

	fusedDeltas := make([]lsm.Delta[lsm.BucketKey[K], V], 0, len(order))
	for _, kv := range order {
		fusedDeltas = append(fusedDeltas, lsm.Delta[lsm.BucketKey[K], V]{Key: kv.key, Val: kv.val, Weight: fused[kv]})
	}

	if err := tr.backend.StoreBatch(negations); err != nil {
		return fmt.Errorf("temporal: compact up to %d: %w", upTo, err)
	}

	if err := tr.backend.StoreBatch(fusedDeltas); err != nil {
		return fmt.Errorf("temporal: compact up to %d: %w", upTo, err)
	}

	// Collapse the spine: every bucket <= upTo becomes the single upTo bucket.
	newSpine := make([]int64, 0, len(tr.spine))
	newSpine = append(newSpine, upTo)

	for _, t := range tr.spine {
		if t > upTo {
			newSpine = append(newSpine, t)
		}
	}

	sort.Slice(newSpine, func(i, j int) bool { return newSpine[i] < newSpine[j] })
	tr.spine = newSpine

	return nil
}

// AdvanceFrontier records an informational hint about the lowest time future
// queries are expected to care about. It never rejects later low-timestamp
// inserts (spec.md §9 Open Questions: permissive reading).
func (tr *Trace[K, V]) AdvanceFrontier(t int64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if t > tr.frontier {
		tr.frontier = t
	}
}

// Frontier returns the most recently advanced frontier hint.
func (tr *Trace[K, V]) Frontier() int64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	return tr.frontier
}

// Dispose closes the underlying backend.
func (tr *Trace[K, V]) Dispose() error {
	return tr.backend.Dispose()
}
