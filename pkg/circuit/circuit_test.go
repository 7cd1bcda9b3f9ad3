package circuit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelknet/dbspgo/pkg/circuit"
	"github.com/nelknet/dbspgo/pkg/operators"
	"github.com/nelknet/dbspgo/pkg/zset"
)

func zsetOf(t *testing.T, entries ...zset.Entry[string]) *zset.ZSet[string] {
	t.Helper()

	z, err := zset.BuildWith(entries)
	require.NoError(t, err)

	return z
}

// TestIntegrateTrajectoryThroughCircuit wires a single input through a
// single Integrate executable and checks the same step-by-step states as
// the operator-level test, now driven by Handle.Step.
func TestIntegrateTrajectoryThroughCircuit(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	in, err := circuit.AddInput[*zset.ZSet[string]](b, "deltas")
	require.NoError(t, err)

	op := operators.NewIntegrate[string]()

	var state *zset.ZSet[string]

	err = b.AddExecutable("integrate", circuit.ExecutableFunc(func() error {
		delta, ok := in.Take()
		if !ok {
			delta = zset.Empty[string]()
		}

		next, stepErr := op.Step(delta)
		if stepErr != nil {
			return stepErr
		}

		state = next

		return nil
	}), []string{"deltas"}, nil)
	require.NoError(t, err)

	handle, err := b.Start(circuit.Config{})
	require.NoError(t, err)

	deltas := []*zset.ZSet[string]{
		zsetOf(t, zset.Entry[string]{Key: "alice", Weight: 1}, zset.Entry[string]{Key: "bob", Weight: 1}),
		zsetOf(t, zset.Entry[string]{Key: "alice", Weight: -1}, zset.Entry[string]{Key: "charlie", Weight: 1}),
		zsetOf(t, zset.Entry[string]{Key: "bob", Weight: -1}),
		zsetOf(t, zset.Entry[string]{Key: "charlie", Weight: -1}, zset.Entry[string]{Key: "alice", Weight: 1}),
	}

	expected := []map[string]zset.Weight{
		{"alice": 1, "bob": 1},
		{"bob": 1, "charlie": 1},
		{"charlie": 1},
		{"alice": 1},
	}

	for i, d := range deltas {
		in.Set(d)
		require.NoError(t, handle.Step())

		assert.Equal(t, len(expected[i]), state.Len(), "step %d", i)

		for k, w := range expected[i] {
			assert.Equal(t, w, state.GetWeight(k), "step %d key %s", i, k)
		}
	}

	assert.Equal(t, int64(len(deltas)), handle.StepCount())
}

type stepTrace struct {
	states map[int64]*zset.ZSet[string]
}

func (s *stepTrace) QueryAtTime(t int64) (*zset.ZSet[string], error) {
	z, ok := s.states[t]
	if !ok {
		return zset.Empty[string](), nil
	}

	return z, nil
}

// TestSnapshotBoundToClockThroughCircuit exercises AddClock + AddSnapshot
// together, checking the circuit auto-advances the clock once per step and
// the snapshot output tracks it.
func TestSnapshotBoundToClockThroughCircuit(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	clock, err := b.AddClock("clock")
	require.NoError(t, err)

	at1 := zsetOf(t, zset.Entry[string]{Key: "a", Weight: 1})
	at2 := zsetOf(t, zset.Entry[string]{Key: "c", Weight: 1})

	trace := &stepTrace{states: map[int64]*zset.ZSet[string]{1: at1, 2: at2}}

	out, err := circuit.AddSnapshot[string](b, "snapshot", trace, clock)
	require.NoError(t, err)

	handle, err := b.Start(circuit.Config{})
	require.NoError(t, err)

	require.NoError(t, handle.Step())

	v, ok := out.Peek()
	require.True(t, ok)
	assert.Equal(t, 0, v.Len())

	require.NoError(t, handle.Step())
	v, ok = out.Peek()
	require.True(t, ok)
	assert.True(t, zset.Equal(at1, v))

	require.NoError(t, handle.Step())
	v, ok = out.Peek()
	require.True(t, ok)
	assert.True(t, zset.Equal(at2, v))
}

// TestAddOutputRejectsReusedName covers the DuplicateName build-time error
// for an output name declared twice.
func TestAddOutputRejectsReusedName(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	in, err := circuit.AddInput[int](b, "in")
	require.NoError(t, err)

	require.NoError(t, circuit.AddOutput(b, in, "out"))

	err = circuit.AddOutput(b, in, "out")
	require.Error(t, err)

	var dup *circuit.DuplicateNameError
	assert.ErrorAs(t, err, &dup)
}

func TestDuplicateNameRejected(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	_, err := circuit.AddInput[int](b, "x")
	require.NoError(t, err)

	_, err = circuit.AddInput[int](b, "x")
	require.Error(t, err)

	var dup *circuit.DuplicateNameError
	assert.ErrorAs(t, err, &dup)
}

// TestCycleWithoutMediatorRejectedAtStart wires two executables into a
// direct cycle with no mediated edge and checks Start reports it.
func TestCycleWithoutMediatorRejectedAtStart(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	noop := circuit.ExecutableFunc(func() error { return nil })

	require.NoError(t, b.AddExecutable("a", noop, []string{"b"}, nil))
	require.NoError(t, b.AddExecutable("b", noop, []string{"a"}, nil))

	_, err := b.Start(circuit.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, circuit.ErrCycleWithoutMediator)
}

// TestMediatedCycleStartsCleanly is the same shape as the rejected case but
// with the feedback edge marked mediated, modeling an Integrate-style
// operator breaking the loop.
func TestMediatedCycleStartsCleanly(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	noop := circuit.ExecutableFunc(func() error { return nil })

	require.NoError(t, b.AddExecutable("a", noop, []string{"b"}, nil))
	require.NoError(t, b.AddExecutable("b", noop, nil, []string{"a"}))

	_, err := b.Start(circuit.Config{})
	require.NoError(t, err)
}

// TestOperatorStepFailurePoisonsCircuit checks that after a failing step,
// the circuit returns the same error on every subsequent Step call.
func TestOperatorStepFailurePoisonsCircuit(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	boom := errors.New("boom")
	failing := circuit.ExecutableFunc(func() error { return boom })

	require.NoError(t, b.AddExecutable("failing", failing, nil, nil))

	handle, err := b.Start(circuit.Config{})
	require.NoError(t, err)

	err = handle.Step()
	require.Error(t, err)

	var opErr *circuit.OperatorStepFailedError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "failing", opErr.Node)
	assert.ErrorIs(t, err, boom)

	err2 := handle.Step()
	assert.Same(t, err, err2)
}

// TestMaintenanceRunsEveryNSteps checks the MaintenanceEverySteps hook fires
// on the right cadence and never when the option is 0.
func TestMaintenanceRunsEveryNSteps(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	noop := circuit.ExecutableFunc(func() error { return nil })
	require.NoError(t, b.AddExecutable("noop", noop, nil, nil))

	var maintained int

	b.AddMaintenance(func() error {
		maintained++
		return nil
	})

	handle, err := b.Start(circuit.Config{MaintenanceEverySteps: 2})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, handle.Step())
	}

	assert.Equal(t, 2, maintained)
}

func TestDisposePoisonsFurtherSteps(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()
	noop := circuit.ExecutableFunc(func() error { return nil })
	require.NoError(t, b.AddExecutable("noop", noop, nil, nil))

	handle, err := b.Start(circuit.Config{})
	require.NoError(t, err)

	require.NoError(t, handle.Dispose())

	err = handle.Step()
	assert.ErrorIs(t, err, circuit.ErrDisposed)
}

func TestExecuteStepAsyncRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	b := circuit.NewBuilder()

	slow := circuit.ExecutableFunc(func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	require.NoError(t, b.AddExecutable("slow", slow, nil, nil))

	handle, err := b.Start(circuit.Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = handle.ExecuteStepAsync(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
