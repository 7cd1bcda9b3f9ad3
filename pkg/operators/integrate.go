package operators

import "github.com/nelknet/dbspgo/pkg/zset"

// Integrate sums deltas over time into a cumulative state (§4.2.1). Its Step
// returns the new accumulated state, not a delta — the operator's purpose is
// to materialize the integrated view, and stepping with an empty delta
// returns the unchanged accumulator (idempotence under empty input, §4.2).
type Integrate[K comparable] struct {
	state *zset.ZSet[K]
}

// NewIntegrate creates an Integrate operator with an empty initial state.
func NewIntegrate[K comparable]() *Integrate[K] {
	return &Integrate[K]{state: zset.Empty[K]()}
}

// Step accumulates delta into the running state and returns the new state.
func (op *Integrate[K]) Step(delta *zset.ZSet[K]) (*zset.ZSet[K], error) {
	next, err := zset.Add(op.state, delta)
	if err != nil {
		return nil, err
	}

	op.state = next

	return op.state, nil
}

// State returns the current accumulated state without stepping.
func (op *Integrate[K]) State() *zset.ZSet[K] {
	return op.state
}
