package operators

import "github.com/nelknet/dbspgo/pkg/zset"

// Differentiate converts a stream of full snapshots into a stream of deltas
// (§4.2.2): it remembers the previous input and emits the difference between
// the new and previous snapshot, then records the new snapshot as previous.
type Differentiate[K comparable] struct {
	previous *zset.ZSet[K]
}

// NewDifferentiate creates a Differentiate operator with no previous snapshot
// (treated as empty).
func NewDifferentiate[K comparable]() *Differentiate[K] {
	return &Differentiate[K]{previous: zset.Empty[K]()}
}

// Step returns difference(snapshot, previous) and records snapshot as the new previous.
func (op *Differentiate[K]) Step(snapshot *zset.ZSet[K]) (*zset.ZSet[K], error) {
	out, err := zset.Difference(snapshot, op.previous)
	if err != nil {
		return nil, err
	}

	op.previous = snapshot

	return out, nil
}
