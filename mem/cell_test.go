package mem

import (
	"math"
	"testing"
)

// mustPanic runs fn and fails the test unless it panics.
func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic, got none", name)
		}
	}()
	fn()
}

// ---------------------------------------------------------------------------
// Float tests
// ---------------------------------------------------------------------------

func TestFloatRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		-0.0,
		1.0,
		-1.0,
		3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		math.Inf(1),
		math.Inf(-1),
	}

	for _, f := range tests {
		c := FromFloat64(f)
		if !c.IsFloat() {
			t.Errorf("FromFloat64(%v).IsFloat() = false, want true", f)
			continue
		}
		got := c.Float64()
		if got != f {
			t.Errorf("FromFloat64(%v).Float64() = %v, want %v", f, got, f)
		}
	}
}

func TestFloatNaN(t *testing.T) {
	// A real NaN must be treated as a float, not mistaken for a tagged cell.
	c := FromFloat64(math.NaN())
	if !c.IsFloat() {
		t.Error("NaN should be treated as float")
	}
	if !math.IsNaN(c.Float64()) {
		t.Error("NaN roundtrip failed")
	}
	if c.IsSmallInt() || c.IsNode() || c.IsSymbol() || c.IsSpecial() {
		t.Error("NaN should not match any tagged kind")
	}
}

// ---------------------------------------------------------------------------
// SmallInt tests
// ---------------------------------------------------------------------------

func TestSmallIntRoundTrip(t *testing.T) {
	tests := []int64{0, 1, -1, 42, -42, MaxSmallInt, MinSmallInt}

	for _, n := range tests {
		c := FromSmallInt(n)
		if !c.IsSmallInt() {
			t.Errorf("FromSmallInt(%d).IsSmallInt() = false, want true", n)
			continue
		}
		if got := c.SmallInt(); got != n {
			t.Errorf("FromSmallInt(%d).SmallInt() = %d, want %d", n, got, n)
		}
	}
}

func TestSmallIntRange(t *testing.T) {
	mustPanic(t, "FromSmallInt over max", func() { FromSmallInt(MaxSmallInt + 1) })
	mustPanic(t, "FromSmallInt under min", func() { FromSmallInt(MinSmallInt - 1) })

	if _, ok := TryFromSmallInt(MaxSmallInt + 1); ok {
		t.Error("TryFromSmallInt(MaxSmallInt+1) should report out of range")
	}
	if c, ok := TryFromSmallInt(7); !ok || c.SmallInt() != 7 {
		t.Error("TryFromSmallInt(7) failed")
	}
}

// ---------------------------------------------------------------------------
// Symbol and node tests
// ---------------------------------------------------------------------------

func TestSymbolRoundTrip(t *testing.T) {
	for _, id := range []uint32{0, 1, 1000, math.MaxUint32} {
		c := FromSymbolID(id)
		if !c.IsSymbol() {
			t.Errorf("FromSymbolID(%d).IsSymbol() = false", id)
			continue
		}
		if got := c.SymbolID(); got != id {
			t.Errorf("SymbolID() = %d, want %d", got, id)
		}
	}
}

func TestNodeCellRoundTrip(t *testing.T) {
	c := FromNode(PoolSeries, makeRef(3, 77))
	if !c.IsNode() {
		t.Fatal("FromNode result should be a node cell")
	}
	pool, ref := c.NodeCell()
	if pool != PoolSeries {
		t.Errorf("pool = %v, want %v", pool, PoolSeries)
	}
	if ref.seg() != 3 || ref.idx() != 77 {
		t.Errorf("ref = (%d,%d), want (3,77)", ref.seg(), ref.idx())
	}

	mustPanic(t, "FromNode with NilRef", func() { FromNode(PoolTiny, NilRef) })
	mustPanic(t, "NodeCell on non-node", func() { Nil.NodeCell() })
}

// ---------------------------------------------------------------------------
// Specials and markers
// ---------------------------------------------------------------------------

func TestSpecialCells(t *testing.T) {
	if !Nil.IsNil() || !Nil.IsSpecial() {
		t.Error("Nil misclassified")
	}
	if !True.Bool() || False.Bool() {
		t.Error("boolean cells misclassified")
	}
	if !True.IsBool() || !False.IsBool() || Nil.IsBool() {
		t.Error("IsBool wrong")
	}

	for _, c := range []Cell{End, Trash, Poison} {
		if !c.IsMarker() {
			t.Errorf("%#x should be a marker", uint64(c))
		}
		if !c.IsSpecial() {
			t.Errorf("%#x should be special", uint64(c))
		}
	}
	if Nil.IsMarker() || True.IsMarker() {
		t.Error("language-visible specials are not markers")
	}
}

func TestTruthiness(t *testing.T) {
	if Nil.IsTruthy() || False.IsTruthy() {
		t.Error("nil and false must be falsy")
	}
	if !True.IsTruthy() || !FromSmallInt(0).IsTruthy() || !FromFloat64(0).IsTruthy() {
		t.Error("everything except nil and false is truthy")
	}
}

func TestAccessorPanics(t *testing.T) {
	mustPanic(t, "Float64 on int", func() { FromSmallInt(1).Float64() })
	mustPanic(t, "SmallInt on float", func() { FromFloat64(1.5).SmallInt() })
	mustPanic(t, "SymbolID on nil", func() { Nil.SymbolID() })
	mustPanic(t, "Bool on int", func() { FromSmallInt(1).Bool() })
}
