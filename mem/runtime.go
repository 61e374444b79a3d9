package mem

import "fmt"

// ---------------------------------------------------------------------------
// Runtime: the context object owning the memory substrate
// ---------------------------------------------------------------------------
//
// One Runtime owns one pool set, one data stack, and one depth guard.
// Nothing here is process-global: multiple independent runtimes can coexist
// in one process, each with its own substrate, as long as each runtime is
// driven by a single mutator at a time.

// Options configures a Runtime at creation. Zero fields take defaults.
type Options struct {
	PoolSpecs     []PoolSpec // pool table; nil means DefaultPoolSpecs
	BallastTarget int        // soft reserved-memory target in bytes
	StackCells    int        // initial data stack capacity in cells
	StackQuantum  int        // cells added per stack expansion
	MaxDepth      int        // recursion limit for the depth guard
	AddrSpan      int        // arms the guard's address heuristic; zero leaves it disarmed
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		PoolSpecs:     DefaultPoolSpecs(),
		BallastTarget: DefaultBallastTarget,
		StackCells:    DefaultStackCells,
		StackQuantum:  DefaultStackQuantum,
		MaxDepth:      DefaultMaxDepth,
	}
}

// Runtime is the memory substrate handed to the evaluator and collector.
type Runtime struct {
	Pools *PoolSet
	Stack *DataStack
	Guard *Guard
}

// NewRuntime creates a runtime from options; zero-valued fields fall back
// to the defaults.
func NewRuntime(opts Options) *Runtime {
	def := DefaultOptions()
	if opts.PoolSpecs == nil {
		opts.PoolSpecs = def.PoolSpecs
	}
	if opts.BallastTarget == 0 {
		opts.BallastTarget = def.BallastTarget
	}
	if opts.StackCells == 0 {
		opts.StackCells = def.StackCells
	}
	if opts.StackQuantum == 0 {
		opts.StackQuantum = def.StackQuantum
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = def.MaxDepth
	}

	pools := NewPoolSet(opts.PoolSpecs)
	pools.SetBallastTarget(opts.BallastTarget)

	guard := NewGuard(opts.MaxDepth)
	if opts.AddrSpan > 0 {
		guard.EnableAddrCheck(opts.AddrSpan)
	}

	return &Runtime{
		Pools: pools,
		Stack: NewDataStack(pools, opts.StackCells, opts.StackQuantum),
		Guard: guard,
	}
}

// ---------------------------------------------------------------------------
// Recovery points
// ---------------------------------------------------------------------------

// abortSignal is the panic payload of Abort; Rescue converts it back into
// its error. Anything else that panics through a Rescue is re-raised.
type abortSignal struct {
	err error
}

// Abort unwinds to the nearest enclosing Rescue, which will surface err.
// For overflow, pass the pre-allocated ErrStackOverflow — never a freshly
// built error object.
func (rt *Runtime) Abort(err error) {
	panic(abortSignal{err: err})
}

// Rescue runs fn as a recovery point: the stack depth is recorded on entry,
// and if fn aborts, the stack is forcibly restored to that depth and the
// abort's error is returned. Non-abort panics propagate unchanged.
func (rt *Runtime) Rescue(fn func() error) (err error) {
	mark := rt.Stack.Mark()
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abortSignal)
			if !ok {
				panic(r)
			}
			if rt.Stack.Depth() > mark {
				rt.Stack.DropTo(mark)
			}
			err = a.err
		}
	}()
	return fn()
}

// Descend brackets one level of recursive evaluation. On overflow it
// undoes the level and returns ErrStackOverflow; the caller unwinds.
func (rt *Runtime) Descend() error {
	if rt.Guard.Enter() == GuardOverflowing {
		rt.Guard.Leave()
		return ErrStackOverflow
	}
	return nil
}

// Ascend undoes one Descend.
func (rt *Runtime) Ascend() {
	rt.Guard.Leave()
}

// CheckBalanced asserts that every push since mark has been matched by a
// drop. Evaluator outer loops call this at region boundaries: any code
// region that pushes must restore its entry depth before returning, except
// when aborting through a recovery point.
func (rt *Runtime) CheckBalanced(mark int) {
	if rt.Stack.Depth() != mark {
		panic(fmt.Sprintf("Runtime.CheckBalanced: stack depth %d, expected %d",
			rt.Stack.Depth(), mark))
	}
}
