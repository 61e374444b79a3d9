package mem

import (
	"errors"
	"testing"
)

func newTestRuntime() *Runtime {
	return NewRuntime(Options{
		PoolSpecs:    testSpecs(),
		StackCells:   8,
		StackQuantum: 8,
		MaxDepth:     16,
	})
}

func TestRuntimeDefaults(t *testing.T) {
	rt := NewRuntime(Options{})

	if rt.Stack.Cap() != DefaultStackCells {
		t.Errorf("stack cap = %d, want %d", rt.Stack.Cap(), DefaultStackCells)
	}
	if rt.Guard.MaxDepth() != DefaultMaxDepth {
		t.Errorf("max depth = %d, want %d", rt.Guard.MaxDepth(), DefaultMaxDepth)
	}
	if rt.Pools.BallastTarget() != DefaultBallastTarget {
		t.Errorf("ballast target = %d, want %d",
			rt.Pools.BallastTarget(), DefaultBallastTarget)
	}
}

// A configured address span must arm the guard's heuristic at construction.
func TestRuntimeArmsAddrGuard(t *testing.T) {
	rt := NewRuntime(Options{
		PoolSpecs:    testSpecs(),
		StackCells:   8,
		StackQuantum: 8,
		MaxDepth:     16,
		AddrSpan:     1 << 20,
	})
	g := rt.Guard
	if !g.AddrCheckArmed() {
		t.Fatal("guard should be armed when an address span is configured")
	}

	if got := g.CheckAddr(g.baseline); got != GuardOK {
		t.Errorf("baseline probe = %v, want ok", got)
	}
	var far uintptr
	if g.growsDown {
		far = g.baseline - g.span - 1
	} else {
		far = g.baseline + g.span + 1
	}
	if got := g.CheckAddr(far); got != GuardOverflowing {
		t.Errorf("probe past the span = %v, want overflowing", got)
	}

	// Zero span leaves the heuristic disarmed.
	if NewRuntime(Options{}).Guard.AddrCheckArmed() {
		t.Error("guard armed without a configured span")
	}
}

// ---------------------------------------------------------------------------
// Recovery points
// ---------------------------------------------------------------------------

func TestRescueRestoresStack(t *testing.T) {
	rt := newTestRuntime()
	rt.Stack.PushCell(FromSmallInt(1))
	mark := rt.Stack.Mark()

	sentinel := errors.New("bad input")
	err := rt.Rescue(func() error {
		rt.Stack.PushCell(FromSmallInt(2))
		rt.Stack.PushCell(FromSmallInt(3))
		rt.Abort(sentinel)
		return nil
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("Rescue returned %v, want the aborted error", err)
	}
	if rt.Stack.Depth() != mark {
		t.Errorf("depth = %d after abort, want %d", rt.Stack.Depth(), mark)
	}
	if rt.Stack.Top().SmallInt() != 1 {
		t.Error("cell below the recovery mark was disturbed")
	}
}

func TestRescuePassesThroughResult(t *testing.T) {
	rt := newTestRuntime()

	if err := rt.Rescue(func() error { return nil }); err != nil {
		t.Errorf("Rescue = %v, want nil", err)
	}

	plain := errors.New("ordinary failure")
	if err := rt.Rescue(func() error { return plain }); !errors.Is(err, plain) {
		t.Errorf("Rescue = %v, want the returned error", err)
	}
}

// Panics that are not aborts must not be swallowed by a recovery point.
func TestRescueRepanicsForeignPanics(t *testing.T) {
	rt := newTestRuntime()
	mustPanic(t, "foreign panic through Rescue", func() {
		rt.Rescue(func() error { panic("unrelated") })
	})
}

// ---------------------------------------------------------------------------
// Recursion bracketing
// ---------------------------------------------------------------------------

func TestDescendOverflow(t *testing.T) {
	rt := newTestRuntime()

	for i := 0; i < rt.Guard.MaxDepth(); i++ {
		if err := rt.Descend(); err != nil {
			t.Fatalf("Descend at depth %d = %v, want nil", i+1, err)
		}
	}

	if err := rt.Descend(); !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("Descend past limit = %v, want ErrStackOverflow", err)
	}
	// The failed Descend undid its own level.
	if rt.Guard.Depth() != rt.Guard.MaxDepth() {
		t.Errorf("depth = %d after failed Descend, want %d",
			rt.Guard.Depth(), rt.Guard.MaxDepth())
	}

	for i := 0; i < rt.Guard.MaxDepth(); i++ {
		rt.Ascend()
	}
	if rt.Guard.Depth() != 0 {
		t.Errorf("depth = %d after full ascent, want 0", rt.Guard.Depth())
	}
}

// The canonical recursive-evaluation shape: Descend per level, abort with
// the pre-allocated error at the limit, recover at the Rescue boundary.
func TestRecursionUnwindsThroughRescue(t *testing.T) {
	rt := newTestRuntime()

	var recurse func() error
	recurse = func() error {
		if err := rt.Descend(); err != nil {
			rt.Abort(err)
		}
		defer rt.Ascend()
		rt.Stack.PushCell(Nil)
		return recurse()
	}

	err := rt.Rescue(recurse)
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("err = %v, want ErrStackOverflow", err)
	}
	if rt.Stack.Depth() != 0 {
		t.Errorf("stack depth = %d after unwind, want 0", rt.Stack.Depth())
	}
	// Deferred Ascends ran during the unwind.
	if rt.Guard.Depth() != 0 {
		t.Errorf("guard depth = %d after unwind, want 0", rt.Guard.Depth())
	}
}

func TestCheckBalanced(t *testing.T) {
	rt := newTestRuntime()

	mark := rt.Stack.Mark()
	rt.Stack.PushCell(Nil)
	rt.Stack.Drop()
	rt.CheckBalanced(mark) // balanced, no panic

	rt.Stack.PushCell(Nil)
	mustPanic(t, "unbalanced region", func() { rt.CheckBalanced(mark) })
}
