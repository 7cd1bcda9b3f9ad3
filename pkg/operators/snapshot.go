package operators

import "github.com/nelknet/dbspgo/pkg/zset"

// Trace is the minimal read surface the snapshot operator needs from a
// temporal trace (storage/temporal.Trace satisfies it): it must not be
// mutated by Snapshot.Step (§4.2.6).
type Trace[K comparable] interface {
	QueryAtTime(t int64) (*zset.ZSet[K], error)
}

// Clock is the minimal read surface the snapshot operator needs from a
// circuit clock handle.
type Clock interface {
	Value() int64
}

// Snapshot reads the trace at the current logical time on every step and
// emits it as output; it never mutates the trace (§4.2.6).
type Snapshot[K comparable] struct {
	trace Trace[K]
	clock Clock
}

// NewSnapshot creates a Snapshot operator bound to a trace and a clock.
func NewSnapshot[K comparable](trace Trace[K], clock Clock) *Snapshot[K] {
	return &Snapshot[K]{trace: trace, clock: clock}
}

// Step takes no input delta (the circuit runtime gives Snapshot no input
// port) and reads the trace at the clock's current value.
func (op *Snapshot[K]) Step() (*zset.ZSet[K], error) {
	return op.trace.QueryAtTime(op.clock.Value())
}
