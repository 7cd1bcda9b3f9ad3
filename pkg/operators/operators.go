// Package operators implements the stateful incremental transformers of
// §4.2: each exposes a single step function that, given one input delta per
// port, returns one output delta whose cost is proportional to delta size
// rather than full-state size. The capability set is intentionally narrow
// (spec.md §9 "Polymorphism over operator capabilities"): a unary step, a
// binary step, or nothing beyond — mirroring the teacher's narrow
// analyze.Aggregator-style interfaces in Sumatoshi-tech/codefang's
// pkg/analyzers/analyze rather than a deep class hierarchy.
package operators

import (
	"github.com/nelknet/dbspgo/pkg/izset"
	"github.com/nelknet/dbspgo/pkg/zset"
)

// StepUnary is the capability exposed by single-input operators whose output
// type equals their input type: Integrate, Differentiate, Filter. MapKeys
// (its output key type may differ) and Snapshot (its Step takes no input)
// do not implement it.
type StepUnary[D any] interface {
	Step(delta D) (D, error)
}

// StepBinary is the capability exposed by two-input operators: InnerJoin,
// JoinProject.
type StepBinary[L, R, D any] interface {
	Step(left L, right R) (D, error)
}
