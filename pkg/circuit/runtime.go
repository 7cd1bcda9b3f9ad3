package circuit

import "context"

// Handle is a started circuit: Step executes every enrolled executable
// exactly once, in topological order, advancing the clock first. A single
// Handle executes one step at a time and is not safe for concurrent Step
// calls; independent Handles may run in parallel (spec.md §5).
type Handle struct {
	specs       map[string]*nodeSpec
	order       []string
	clocks      []*StreamHandle[int64]
	maintainers []func() error
	cfg         Config

	stepCount int64
	poison    error
}

// StepCount returns the number of steps completed so far.
func (h *Handle) StepCount() int64 { return h.stepCount }

// Step advances the clock, then runs every executable once in topological
// order. If an executable returns an error, the circuit is poisoned: this
// and every subsequent Step call return OperatorStepFailedError until
// Dispose.
func (h *Handle) Step() error {
	if h.poison != nil {
		return h.poison
	}

	for _, c := range h.clocks {
		c.Set(h.stepCount)
	}

	for _, name := range h.order {
		if err := h.specs[name].run(); err != nil {
			h.poison = &OperatorStepFailedError{Node: name, Cause: err}
			return h.poison
		}
	}

	h.stepCount++

	if h.cfg.MaintenanceEverySteps > 0 && h.stepCount%int64(h.cfg.MaintenanceEverySteps) == 0 {
		for _, m := range h.maintainers {
			if err := m(); err != nil {
				h.poison = err
				return err
			}
		}
	}

	return nil
}

// ExecuteStepAsync runs Step in the background and returns its result,
// unless ctx is cancelled first, in which case it returns ctx.Err()
// without waiting — consistent with spec.md §5's "steps are not
// interruptible": the in-flight step still runs to completion, but the
// caller isn't forced to block on it.
func (h *Handle) ExecuteStepAsync(ctx context.Context) error {
	done := make(chan error, 1)

	go func() { done <- h.Step() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose poisons the circuit; subsequent Step/ExecuteStepAsync calls
// return ErrDisposed.
func (h *Handle) Dispose() error {
	h.poison = ErrDisposed
	return nil
}

// ErrDisposed marks a Handle as no longer usable.
var ErrDisposed = disposedError{}

type disposedError struct{}

func (disposedError) Error() string { return "circuit: disposed" }
