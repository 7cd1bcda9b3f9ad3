package operators

import (
	"github.com/nelknet/dbspgo/pkg/izset"
	"github.com/nelknet/dbspgo/pkg/zset"
)

// InnerJoin maintains two indexed traces and, on each step, emits the delta
// of the equijoin on K (§4.2.3):
//
//	out = (dL join R) + (L join dR) + (dL join dR)
//
// computed in that order so the dL x dR cross term is never double-counted,
// then the state is updated L <- L+dL, R <- R+dR. This is algebraically
// equivalent to differencing a full recomputation of the join.
type InnerJoin[K comparable, VL comparable, VR comparable] struct {
	left  *izset.IndexedZSet[K, VL]
	right *izset.IndexedZSet[K, VR]
}

// NewInnerJoin creates an InnerJoin operator with empty left/right state.
func NewInnerJoin[K comparable, VL comparable, VR comparable]() *InnerJoin[K, VL, VR] {
	return &InnerJoin[K, VL, VR]{
		left:  izset.Empty[K, VL](),
		right: izset.Empty[K, VR](),
	}
}

// Step produces the join delta for (deltaLeft, deltaRight) against the
// current state, then folds both deltas into that state.
func (op *InnerJoin[K, VL, VR]) Step(
	deltaLeft *izset.IndexedZSet[K, VL],
	deltaRight *izset.IndexedZSet[K, VR],
) (*izset.IndexedZSet[K, izset.Pair[VL, VR]], error) {
	var b izset.Builder[K, izset.Pair[VL, VR]]

	joinInto(&b, deltaLeft, op.right)
	joinInto(&b, op.left, deltaRight)
	joinInto(&b, deltaLeft, deltaRight)

	op.left = izset.Add(op.left, deltaLeft)
	op.right = izset.Add(op.right, deltaRight)

	return b.ToIndexedZSet(), nil
}

// joinInto iterates whichever of left and right has fewer distinct keys,
// probes the other side's per-key slice for each of its keys, and
// accumulates (k, (vl,vr)) -> wl*wr into b.
func joinInto[K comparable, VL comparable, VR comparable](
	b *izset.Builder[K, izset.Pair[VL, VR]],
	left *izset.IndexedZSet[K, VL],
	right *izset.IndexedZSet[K, VR],
) {
	if left == nil || right == nil {
		return
	}

	if right.KeyCount() < left.KeyCount() {
		right.Iterate(func(k K, vr VR, wr zset.Weight) {
			for _, lEntry := range left.PerKey(k) {
				product := lEntry.Weight * wr
				if product == 0 {
					continue
				}

				b.AddWeight(k, izset.Pair[VL, VR]{Key: lEntry.Key, Val: vr}, product)
			}
		})

		return
	}

	left.Iterate(func(k K, vl VL, wl zset.Weight) {
		for _, rEntry := range right.PerKey(k) {
			product := wl * rEntry.Weight
			if product == 0 {
				continue
			}

			b.AddWeight(k, izset.Pair[VL, VR]{Key: vl, Val: rEntry.Key}, product)
		}
	})
}
