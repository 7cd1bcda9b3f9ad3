package izset

import "github.com/nelknet/dbspgo/pkg/zset"

// Add computes the sum of two IndexedZSets, coalescing (k,v) weights and
// dropping net-zero results — used by stateful operators to fold a delta
// into accumulated state (e.g. operators.InnerJoin's `L <- L + dL`).
func Add[K comparable, V comparable](a, b *IndexedZSet[K, V]) *IndexedZSet[K, V] {
	var bld Builder[K, V]

	if a != nil {
		a.Iterate(func(k K, v V, w zset.Weight) { bld.AddWeight(k, v, w) })
	}

	if b != nil {
		b.Iterate(func(k K, v V, w zset.Weight) { bld.AddWeight(k, v, w) })
	}

	return bld.ToIndexedZSet()
}
