// Package izset implements IndexedZSet: a Z-set over (K,V) pairs physically
// indexed by K so that, for a fixed key, its (V -> weight) slice can be
// enumerated without scanning any other key. This is the sole structure that
// supports efficient join (operators.InnerJoin probes it by outer key).
package izset

import (
	"github.com/nelknet/dbspgo/pkg/zset"
)

// Pair is the flattened (K,V) key used when converting to/from a plain ZSet.
type Pair[K comparable, V comparable] struct {
	Key K
	Val V
}

// IndexedZSet is a two-level map: outer keyed by K, inner by V, weights as
// leaves (spec.md §9 "IndexedZSet physical layout"). Adapted from the
// teacher's two-level clone helper, pkg/alg/mapx.CloneNested in
// Sumatoshi-tech/codefang, generalized from a generic clone utility into a
// structure with join-shaped accessors.
type IndexedZSet[K comparable, V comparable] struct {
	outer map[K]map[V]zset.Weight
	// keyOrder/innerOrder give deterministic iteration, mirroring zset's
	// insertion-order tracking.
	keyOrder   []K
	innerOrder map[K][]V
}

// Empty returns an empty IndexedZSet.
func Empty[K comparable, V comparable]() *IndexedZSet[K, V] {
	return &IndexedZSet[K, V]{
		outer:      map[K]map[V]zset.Weight{},
		innerOrder: map[K][]V{},
	}
}

// Len returns the total number of (k,v) entries across all keys.
func (iz *IndexedZSet[K, V]) Len() int {
	if iz == nil {
		return 0
	}

	n := 0
	for _, inner := range iz.outer {
		n += len(inner)
	}

	return n
}

// KeyCount returns the number of distinct outer keys.
func (iz *IndexedZSet[K, V]) KeyCount() int {
	if iz == nil {
		return 0
	}

	return len(iz.outer)
}

// PerKey enumerates all (v, w) pairs for a fixed k without touching any other
// key's slice — the operation §4.2.3's inner join relies on.
func (iz *IndexedZSet[K, V]) PerKey(k K) []zset.Entry[V] {
	if iz == nil {
		return nil
	}

	inner, ok := iz.outer[k]
	if !ok {
		return nil
	}

	out := make([]zset.Entry[V], 0, len(inner))
	for _, v := range iz.innerOrder[k] {
		if w, ok := inner[v]; ok {
			out = append(out, zset.Entry[V]{Key: v, Weight: w})
		}
	}

	return out
}

// Iterate calls f for every (k, v, w) triple. Outer keys are visited in
// insertion order; invariant I5 (per-key slices sum to the full iteration)
// follows directly from this being the only iteration path.
func (iz *IndexedZSet[K, V]) Iterate(f func(k K, v V, w zset.Weight)) {
	if iz == nil {
		return
	}

	for _, k := range iz.keyOrder {
		inner, ok := iz.outer[k]
		if !ok {
			continue
		}

		for _, v := range iz.innerOrder[k] {
			if w, ok := inner[v]; ok {
				f(k, v, w)
			}
		}
	}
}

// Builder accumulates (k,v,w) triples additively and freezes into an
// IndexedZSet, coalescing duplicates and dropping net-zero entries — the
// same builder-then-immutable discipline as zset.Builder.
type Builder[K comparable, V comparable] struct {
	outer      map[K]map[V]zset.Weight
	keyOrder   []K
	innerOrder map[K][]V
}

// AddWeight adds w to the current weight stored at (k,v).
func (b *Builder[K, V]) AddWeight(k K, v V, w zset.Weight) {
	if b.outer == nil {
		b.outer = map[K]map[V]zset.Weight{}
		b.innerOrder = map[K][]V{}
	}

	inner, ok := b.outer[k]
	if !ok {
		inner = map[V]zset.Weight{}
		b.outer[k] = inner
		b.keyOrder = append(b.keyOrder, k)
	}

	if _, existed := inner[v]; !existed {
		b.innerOrder[k] = append(b.innerOrder[k], v)
	}

	inner[v] += w
}

// ToIndexedZSet freezes the builder, dropping zero-weight entries.
func (b *Builder[K, V]) ToIndexedZSet() *IndexedZSet[K, V] {
	out := Empty[K, V]()

	for _, k := range b.keyOrder {
		inner := b.outer[k]

		for _, v := range b.innerOrder[k] {
			w, ok := inner[v]
			if !ok || w == 0 {
				continue
			}

			out.set(k, v, w)
		}
	}

	return out
}

func (iz *IndexedZSet[K, V]) set(k K, v V, w zset.Weight) {
	inner, ok := iz.outer[k]
	if !ok {
		inner = map[V]zset.Weight{}
		iz.outer[k] = inner
		iz.keyOrder = append(iz.keyOrder, k)
	}

	if _, existed := inner[v]; !existed {
		iz.innerOrder[k] = append(iz.innerOrder[k], v)
	}

	inner[v] = w
}

// FromZSet builds an IndexedZSet from a ZSet keyed by Pair[K,V].
func FromZSet[K comparable, V comparable](z *zset.ZSet[Pair[K, V]]) *IndexedZSet[K, V] {
	var b Builder[K, V]

	z.Iterate(func(p Pair[K, V], w zset.Weight) {
		b.AddWeight(p.Key, p.Val, w)
	})

	return b.ToIndexedZSet()
}

// ToZSet converts an IndexedZSet to a plain ZSet over Pair[K,V].
func ToZSet[K comparable, V comparable](iz *IndexedZSet[K, V]) *zset.ZSet[Pair[K, V]] {
	var b zset.Builder[Pair[K, V]]

	iz.Iterate(func(k K, v V, w zset.Weight) {
		b.AddWeight(Pair[K, V]{Key: k, Val: v}, w)
	})

	out, err := b.ToZSet()
	if err != nil {
		// ToZSet on a well-formed IndexedZSet cannot overflow unless the
		// source already overflowed, in which case the caller has a bug
		// that predates this conversion; surface it the only way this
		// function's signature allows.
		panic(err)
	}

	return out
}
