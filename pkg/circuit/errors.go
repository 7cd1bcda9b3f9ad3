package circuit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleWithoutMediator is wrapped by CycleError when Start finds a cycle
// that no node marked as a mediator breaks.
var ErrCycleWithoutMediator = errors.New("circuit: cycle without mediator")

// CycleError reports the offending cycle, node names in traversal order.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleWithoutMediator, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleWithoutMediator }

// DuplicateNameError reports that two nodes or handles share a name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("circuit: duplicate name %q", e.Name)
}

// TypeMismatchError reports that an output binding's declared type disagrees
// with the handle it was bound to.
type TypeMismatchError struct {
	Name string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("circuit: type mismatch on %q: want %s, got %s", e.Name, e.Want, e.Got)
}

// OperatorStepFailedError reports that a user operator's Step returned an
// error during Step/ExecuteStepAsync. The circuit is poisoned afterward:
// every subsequent Step call returns this same node's failure until
// Dispose, unless the operator documents its own recovery.
type OperatorStepFailedError struct {
	Node  string
	Cause error
}

func (e *OperatorStepFailedError) Error() string {
	return fmt.Sprintf("circuit: operator %q step failed: %v", e.Node, e.Cause)
}

func (e *OperatorStepFailedError) Unwrap() error { return e.Cause }

// ErrNotStarted marks a circuit that has not been started. A Handle is only
// obtained from Start, so Step and ExecuteStepAsync never return it.
var ErrNotStarted = errors.New("circuit: not started")

// ErrAlreadyStarted marks a second Start on the same Builder. Start does not
// track earlier calls and never returns it: each call validates the graph
// again and returns a new Handle.
var ErrAlreadyStarted = errors.New("circuit: already started")
