package mem

import "fmt"

// ---------------------------------------------------------------------------
// Data Stack: the evaluator's shared LIFO workspace
// ---------------------------------------------------------------------------
//
// One growable sequence of value cells, backed by a FlavorDataStack series
// drawn from the same pool substrate as everything else. The evaluator and
// built-in operations push intermediate values here instead of making many
// small allocations, then bulk-materialize with CollectFrom.
//
// Layout of the backing array:
//
//	slot 0            base sentinel (End) — the stack is empty when the
//	                  top index points here
//	slots 1..dsp      live cells, in push order
//	slot dsp+1        End marker (rewritten on every push; Drop leaves the
//	                  vacated bits untouched, which is sufficient because
//	                  no sentinel is ever written strictly between the
//	                  base and the top)
//	last slot         Poison — a push that lands on it is the capacity
//	                  check: no separate bounds comparison needed
//
// Expansion relocates the whole backing storage, so references into the
// stack are by index only and must be re-derived after any potential push.

// DataStack is the growable LIFO of value cells. It exclusively owns its
// backing series; no other component may hold references into it across a
// push.
type DataStack struct {
	ps      *PoolSet
	array   Series
	dsp     int // index of the top cell; 0 means empty (base sentinel)
	quantum int // cells added per expansion
}

// Default stack geometry, used when the manifest does not override it.
const (
	DefaultStackCells   = 128
	DefaultStackQuantum = 128
)

// NewDataStack creates the stack with an initial capacity (in usable cells)
// and a fixed expansion quantum.
func NewDataStack(ps *PoolSet, initialCells, quantum int) *DataStack {
	if initialCells < 1 {
		panic("NewDataStack: initial capacity must be at least one cell")
	}
	if quantum < 1 {
		panic("NewDataStack: expansion quantum must be at least one cell")
	}

	// Two extra slots: the base sentinel and the poison boundary. The
	// slots between them are stamped too: the push-time poison probe must
	// never read recycled pool bytes that happen to match the Poison
	// bit pattern.
	arr := NewSeries(ps, FlavorDataStack, initialCells+2)
	arr.SetLen(1)
	for i := 0; i <= initialCells; i++ {
		arr.setCellAtRaw(i, End)
	}
	arr.setCellAtRaw(initialCells+1, Poison)

	return &DataStack{ps: ps, array: arr, quantum: quantum}
}

// Depth returns the number of live cells on the stack.
func (s *DataStack) Depth() int { return s.dsp }

// Cap returns the number of cells the stack can hold before expanding.
func (s *DataStack) Cap() int { return s.array.Cap() - 2 }

// Mark captures the current depth for a later DropTo or CollectFrom.
func (s *DataStack) Mark() int { return s.dsp }

// ---------------------------------------------------------------------------
// Push / drop
// ---------------------------------------------------------------------------

// Push advances the top of the stack and returns the new top's index. The
// slot is stamped Trash; the caller must fully initialize it before any
// step that could trigger collection, because a Trash cell is not
// collector-safe. The index stays valid across expansion (storage may
// move; indexes do not).
func (s *DataStack) Push() int {
	s.dsp++
	if s.array.cellAtRaw(s.dsp) == Poison {
		// Landed on the capacity boundary: expand, then continue. The
		// poison slot becomes an ordinary slot of the larger array.
		s.expand()
	}
	s.array.setCellAtRaw(s.dsp, Trash)
	if s.dsp+1 < s.array.Cap()-1 {
		s.array.setCellAtRaw(s.dsp+1, End)
	}
	s.array.setLen(s.dsp + 1)
	return s.dsp
}

// PushCell pushes and initializes a slot in one step.
// Panics if c is a substrate-internal marker.
func (s *DataStack) PushCell(c Cell) int {
	if c.IsMarker() {
		panic("DataStack.PushCell: marker cells cannot be pushed")
	}
	i := s.Push()
	s.array.setCellAtRaw(i, c)
	return i
}

// expand grows the backing array by the expansion quantum, preserving all
// live cells, and reinstates the poison boundary. Expansion copies only the
// live region, so every slot above it is stamped before the boundary goes
// in: recycled storage could otherwise carry stray Poison bit patterns.
func (s *DataStack) expand() {
	newCap := s.array.Cap() + s.quantum
	s.array.Expand(newCap)
	for i := s.dsp; i < newCap-1; i++ {
		s.array.setCellAtRaw(i, End)
	}
	s.array.setCellAtRaw(newCap-1, Poison)
}

// Drop retracts the top of the stack by one. The vacated slot's bits are
// left untouched: no sentinel was ever written mid-stack, so decrementing
// the index is sufficient.
func (s *DataStack) Drop() {
	if s.dsp == 0 {
		panic("DataStack.Drop: stack is empty")
	}
	s.dsp--
	s.array.setLen(s.dsp + 1)
}

// DropTo retracts until the depth equals mark. Calling it again with the
// same mark is a no-op. Panics if mark exceeds the current depth.
func (s *DataStack) DropTo(mark int) {
	if mark < 0 || mark > s.dsp {
		panic(fmt.Sprintf("DataStack.DropTo: mark %d exceeds depth %d", mark, s.dsp))
	}
	s.dsp = mark
	s.array.setLen(s.dsp + 1)
}

// ---------------------------------------------------------------------------
// Access
// ---------------------------------------------------------------------------

// Top returns the current top cell.
// Panics if the stack is empty (the top index points at the base sentinel).
func (s *DataStack) Top() Cell {
	if s.dsp == 0 {
		panic("DataStack.Top: stack is empty")
	}
	return s.array.cellAtRaw(s.dsp)
}

// SetTop overwrites the current top cell.
func (s *DataStack) SetTop(c Cell) {
	if s.dsp == 0 {
		panic("DataStack.SetTop: stack is empty")
	}
	s.array.setCellAtRaw(s.dsp, c)
}

// Get returns the cell at a stack index previously returned by Push.
func (s *DataStack) Get(i int) Cell {
	if i < 1 || i > s.dsp {
		panic(fmt.Sprintf("DataStack.Get: index %d out of range (depth %d)", i, s.dsp))
	}
	return s.array.cellAtRaw(i)
}

// Set stores a cell at a stack index previously returned by Push.
func (s *DataStack) Set(i int, c Cell) {
	if i < 1 || i > s.dsp {
		panic(fmt.Sprintf("DataStack.Set: index %d out of range (depth %d)", i, s.dsp))
	}
	s.array.setCellAtRaw(i, c)
}

// ---------------------------------------------------------------------------
// Bulk materialization
// ---------------------------------------------------------------------------

// CollectFrom copies every cell pushed since mark into a freshly allocated
// array-flavored series, in push order, and drops the stack back to mark.
// This is the "accumulate N values, then bulk-materialize" pattern: callers
// get a sized result without pre-guessing capacity.
func (s *DataStack) CollectFrom(mark int) Series {
	if mark < 0 || mark > s.dsp {
		panic(fmt.Sprintf("DataStack.CollectFrom: mark %d exceeds depth %d", mark, s.dsp))
	}

	count := s.dsp - mark
	arr := NewSeries(s.ps, FlavorArray, count)
	for i := 0; i < count; i++ {
		arr.Append(s.array.cellAtRaw(mark + 1 + i))
	}

	s.DropTo(mark)
	return arr
}

// Backing returns the stack's backing series, for diagnostics and the
// collector's root scan. The series is exclusively owned by the stack.
func (s *DataStack) Backing() Series { return s.array }
