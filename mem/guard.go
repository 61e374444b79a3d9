package mem

import (
	"errors"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Native-stack depth guard
// ---------------------------------------------------------------------------
//
// Deeply recursive evaluation can exhaust the native call stack long before
// the pool set runs out of memory. The guard exists to fail gracefully
// instead: recursive routines opt in by bracketing their recursion with
// Enter/Leave (or probing with Check), and unwind to the nearest recovery
// point when the guard reports overflow.
//
// The primary mechanism is an explicit recursion counter: portable,
// predictable, and configurable. An address-comparison heuristic is
// available as a supplementary fast check, but Go's runtime relocates
// goroutine stacks as they grow, so address arithmetic against a baseline
// captured earlier cannot be trusted in general. Unless the heuristic is
// explicitly enabled, the address check reports ok unconditionally —
// accepting the (counter-guarded) risk rather than a false positive.

// ErrStackOverflow is the pre-allocated overflow error. It is raised as-is:
// allocating a fresh error object at detection time could itself require
// stack headroom that no longer exists.
var ErrStackOverflow = errors.New("stack overflow")

// GuardState is the guard's verdict at a call site.
type GuardState int

const (
	GuardOK GuardState = iota
	GuardOverflowing
)

// DefaultMaxDepth is the recursion limit used when the manifest does not
// override it.
const DefaultMaxDepth = 4096

// Guard tracks interpreter-level recursion depth for one runtime.
// Like everything in this package it assumes a single mutator.
type Guard struct {
	depth int
	max   int

	// Supplementary address heuristic (off unless enabled).
	addrEnabled bool
	baseline    uintptr
	span        uintptr
	growsDown   bool
}

// NewGuard creates a guard with the given recursion limit.
func NewGuard(maxDepth int) *Guard {
	if maxDepth < 1 {
		panic("NewGuard: max depth must be positive")
	}
	return &Guard{max: maxDepth}
}

// Depth returns the current recursion depth.
func (g *Guard) Depth() int { return g.depth }

// MaxDepth returns the configured limit.
func (g *Guard) MaxDepth() int { return g.max }

// Enter records one level of recursion and returns the guard's verdict.
// On GuardOverflowing the caller must not recurse further: it should
// Leave, unwind to the nearest recovery point, and surface
// ErrStackOverflow. Enough headroom remains below the limit's trigger
// point to run that cleanup.
func (g *Guard) Enter() GuardState {
	g.depth++
	return g.Check()
}

// Leave undoes one Enter.
func (g *Guard) Leave() {
	if g.depth == 0 {
		panic("Guard.Leave: not entered")
	}
	g.depth--
}

// Check returns the verdict for the current depth without changing it.
func (g *Guard) Check() GuardState {
	if g.depth > g.max {
		return GuardOverflowing
	}
	return GuardOK
}

// Reset clears the depth counter, for use at a recovery point after an
// overflow unwind.
func (g *Guard) Reset() { g.depth = 0 }

// ---------------------------------------------------------------------------
// Address heuristic (supplementary)
// ---------------------------------------------------------------------------

// StackProbe returns the address of a caller-frame local, for use with
// CheckAddr.
//
//go:noinline
func StackProbe() uintptr {
	var probe byte
	return uintptr(unsafe.Pointer(&probe))
}

// EnableAddrCheck arms the address heuristic: the current frame's address
// becomes the baseline, and probes more than span bytes past it in the
// stack's growth direction report overflow. The growth direction is
// detected with a nested probe; if detection is inconclusive the heuristic
// stays disarmed and CheckAddr always reports ok.
func (g *Guard) EnableAddrCheck(span int) {
	if span <= 0 {
		panic("Guard.EnableAddrCheck: span must be positive")
	}
	here := StackProbe()
	below := nestedProbe()
	if here == below {
		return // cannot determine growth direction
	}
	g.baseline = here
	g.span = uintptr(span)
	g.growsDown = below < here
	g.addrEnabled = true
}

//go:noinline
func nestedProbe() uintptr {
	return StackProbe()
}

// AddrCheckArmed reports whether the address heuristic is armed.
func (g *Guard) AddrCheckArmed() bool { return g.addrEnabled }

// CheckAddr compares a caller-local address (from StackProbe) against the
// armed baseline. Reports ok unconditionally when the heuristic is not
// armed. This is a heuristic, not a guarantee: the counter in Enter/Check
// remains the authoritative limit.
func (g *Guard) CheckAddr(probe uintptr) GuardState {
	if !g.addrEnabled {
		return GuardOK
	}
	if g.growsDown {
		if probe < g.baseline && g.baseline-probe > g.span {
			return GuardOverflowing
		}
	} else {
		if probe > g.baseline && probe-g.baseline > g.span {
			return GuardOverflowing
		}
	}
	return GuardOK
}
