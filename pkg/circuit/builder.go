package circuit

import (
	"github.com/nelknet/dbspgo/pkg/operators"
	"github.com/nelknet/dbspgo/pkg/zset"
)

// Executable is the capability AddExecutable enrolls: a per-step action
// that reads its declared input handles and writes its declared output
// handles, spec.md §4.4 "AddExecutable(op) — enrolls a user-defined
// per-step executable (for ad-hoc operators)."
type Executable interface {
	Step() error
}

// ExecutableFunc adapts a plain func() error to Executable.
type ExecutableFunc func() error

// Step implements Executable.
func (f ExecutableFunc) Step() error { return f() }

type nodeKind int

const (
	kindInput nodeKind = iota
	kindClock
	kindOutput
	kindExecutable
)

type nodeSpec struct {
	name string
	kind nodeKind
	run  func() error
}

type edge struct {
	from, to string
	mediated bool
}

// Builder constructs a circuit graph: AddInput/AddClock produce stream
// handles, AddExecutable/AddSnapshot enroll per-step logic and the
// dependency edges that determine topological execution order, and Start
// validates the graph and returns a runnable Handle.
type Builder struct {
	specs       map[string]*nodeSpec
	edges       []edge
	clockNames  []string
	clocks      []*StreamHandle[int64]
	maintainers []func() error
}

// NewBuilder creates an empty circuit builder.
func NewBuilder() *Builder {
	return &Builder{specs: map[string]*nodeSpec{}}
}

func (b *Builder) addSpec(spec *nodeSpec) error {
	if _, exists := b.specs[spec.name]; exists {
		return &DuplicateNameError{Name: spec.name}
	}

	b.specs[spec.name] = spec

	return nil
}

// AddInput registers an externally-writable input and returns its handle.
// The caller Sets it before each Step that should carry a new delta.
func AddInput[T any](b *Builder, name string) (*StreamHandle[T], error) {
	if err := b.addSpec(&nodeSpec{name: name, kind: kindInput}); err != nil {
		return nil, err
	}

	return NewStreamHandle[T](), nil
}

// AddOutput declares name as an external observation point over handle. It
// adds no scheduling edge: handle's producer already runs in topological
// order, and AddOutput exists purely so the name appears in error messages
// and stats rather than only the handle's producer's name.
func AddOutput[T any](b *Builder, handle *StreamHandle[T], name string) error {
	return b.addSpec(&nodeSpec{name: name, kind: kindOutput})
}

// AddClock registers a clock handle the runtime Sets to the current step
// index (0-based from Start) at the beginning of every Step, before any
// executable runs.
func (b *Builder) AddClock(name string) (*StreamHandle[int64], error) {
	if err := b.addSpec(&nodeSpec{name: name, kind: kindClock}); err != nil {
		return nil, err
	}

	h := NewStreamHandle[int64]()
	b.clockNames = append(b.clockNames, name)
	b.clocks = append(b.clocks, h)

	return h, nil
}

// AddExecutable enrolls exec under name, scheduled after every node named in
// reads and, for feedback loops, after every node named in mediatedReads —
// except mediatedReads edges are excluded from cycle detection (spec.md §9
// "Cycles in the circuit": a mediator like Integrate/delay breaks the cycle
// by construction, since it reads whatever its producer left in the handle
// from a previous step rather than requiring same-step ordering).
func (b *Builder) AddExecutable(name string, exec Executable, reads []string, mediatedReads []string) error {
	if err := b.addSpec(&nodeSpec{name: name, kind: kindExecutable, run: exec.Step}); err != nil {
		return err
	}

	for _, r := range reads {
		b.edges = append(b.edges, edge{from: r, to: name})
	}

	for _, r := range mediatedReads {
		b.edges = append(b.edges, edge{from: r, to: name, mediated: true})
	}

	return nil
}

// AddSnapshot registers the temporal snapshot operator (§4.2.6) bound to
// trace and clock, returning the handle its output is written to each step.
func AddSnapshot[K comparable](b *Builder, name string, trace operators.Trace[K], clock operators.Clock, reads ...string) (*StreamHandle[*zset.ZSet[K]], error) {
	out := NewStreamHandle[*zset.ZSet[K]]()
	snap := operators.NewSnapshot[K](trace, clock)

	exec := ExecutableFunc(func() error {
		z, err := snap.Step()
		if err != nil {
			return err
		}

		out.Set(z)

		return nil
	})

	if err := b.AddExecutable(name, exec, reads, nil); err != nil {
		return nil, err
	}

	return out, nil
}

// AddMaintenance registers a maintenance action run every MaintenanceEverySteps
// steps (compaction on an attached trace, stats collection, and the like).
func (b *Builder) AddMaintenance(fn func() error) {
	b.maintainers = append(b.maintainers, fn)
}

// Config holds the circuit's runtime options (spec.md §4.3.5-adjacent;
// §4.4's MaintenanceEverySteps is the only circuit-level option).
type Config struct {
	// MaintenanceEverySteps triggers a maintenance pass after every N
	// steps; 0 means never (spec.md §9 open question, resolved permissively).
	MaintenanceEverySteps int
}

// Start validates the graph (acyclic once mediated edges are excluded) and
// returns a runnable Handle executing nodes in topological order.
func (b *Builder) Start(cfg Config) (*Handle, error) {
	g := newDepGraph()

	for name := range b.specs {
		g.addNode(name)
	}

	for _, e := range b.edges {
		if e.mediated {
			g.addNode(e.from)
			g.addNode(e.to)

			continue
		}

		g.addEdge(e.from, e.to)
	}

	order, ok := g.topoSort()
	if !ok {
		seed := g.firstCycleNode(order)
		return nil, &CycleError{Cycle: g.findCycle(seed)}
	}

	runOrder := make([]string, 0, len(order))

	for _, name := range order {
		if b.specs[name].kind == kindExecutable {
			runOrder = append(runOrder, name)
		}
	}

	return &Handle{
		specs:       b.specs,
		order:       runOrder,
		clocks:      b.clocks,
		maintainers: b.maintainers,
		cfg:         cfg,
	}, nil
}
