package operators

import (
	"github.com/nelknet/dbspgo/pkg/izset"
	"github.com/nelknet/dbspgo/pkg/zset"
)

// JoinProject fuses InnerJoin with a pure projection so the intermediate
// IndexedZSet of joined pairs is never materialized (§4.2.4). It is
// configured with pure key extractors for each side's raw row type and a
// combiner that produces the output row directly from a matched pair.
//
// Correctness requirement (enforced by callers, not by this type): the
// emitted multiset must equal the projection of the unfused InnerJoin's
// emitted delta, key for key, weight for weight. The combiner must be pure
// and deterministic (spec.md §9): this operator never caches combiner
// output across steps.
type JoinProject[K comparable, LeftRow comparable, RightRow comparable, Out comparable] struct {
	leftKey  func(LeftRow) K
	rightKey func(RightRow) K
	combine  func(LeftRow, RightRow) Out

	left  *izset.IndexedZSet[K, LeftRow]
	right *izset.IndexedZSet[K, RightRow]
}

// NewJoinProject creates a fused join-project operator.
func NewJoinProject[K comparable, LeftRow comparable, RightRow comparable, Out comparable](
	leftKey func(LeftRow) K,
	rightKey func(RightRow) K,
	combine func(LeftRow, RightRow) Out,
) *JoinProject[K, LeftRow, RightRow, Out] {
	return &JoinProject[K, LeftRow, RightRow, Out]{
		leftKey:  leftKey,
		rightKey: rightKey,
		combine:  combine,
		left:     izset.Empty[K, LeftRow](),
		right:    izset.Empty[K, RightRow](),
	}
}

// Step indexes the raw row deltas by their extracted keys, computes the
// fused join-and-project delta directly as a ZSet[Out], and folds the raw
// row deltas into state.
func (op *JoinProject[K, LeftRow, RightRow, Out]) Step(
	deltaLeftRows *zset.ZSet[LeftRow],
	deltaRightRows *zset.ZSet[RightRow],
) (*zset.ZSet[Out], error) {
	deltaLeft := indexRows(deltaLeftRows, op.leftKey)
	deltaRight := indexRows(deltaRightRows, op.rightKey)

	var b zset.Builder[Out]

	op.projectInto(&b, deltaLeft, op.right)
	op.projectInto(&b, op.left, deltaRight)
	op.projectInto(&b, deltaLeft, deltaRight)

	op.left = izset.Add(op.left, deltaLeft)
	op.right = izset.Add(op.right, deltaRight)

	return b.ToZSet()
}

func (op *JoinProject[K, LeftRow, RightRow, Out]) projectInto(
	b *zset.Builder[Out],
	left *izset.IndexedZSet[K, LeftRow],
	right *izset.IndexedZSet[K, RightRow],
) {
	if left == nil || right == nil {
		return
	}

	left.Iterate(func(k K, lrow LeftRow, wl zset.Weight) {
		for _, rEntry := range right.PerKey(k) {
			product := wl * rEntry.Weight
			if product == 0 {
				continue
			}

			b.AddWeight(op.combine(lrow, rEntry.Key), product)
		}
	})
}

func indexRows[K comparable, Row comparable](rows *zset.ZSet[Row], key func(Row) K) *izset.IndexedZSet[K, Row] {
	var b izset.Builder[K, Row]

	rows.Iterate(func(row Row, w zset.Weight) {
		b.AddWeight(key(row), row, w)
	})

	return b.ToIndexedZSet()
}
