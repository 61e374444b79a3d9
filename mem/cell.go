package mem

import (
	"math"
)

// Cell represents a Reed value using NaN-boxing.
//
// All cells are 64-bit IEEE 754 doubles. Non-float values are encoded in
// the NaN (Not-a-Number) space using the quiet NaN prefix and tag bits to
// distinguish kinds.
//
// Encoding scheme:
//   - Float: Native IEEE 754 double (if not a NaN, it's a float)
//   - SmallInt: Quiet NaN + tagInt + 48-bit signed payload
//   - Symbol: Quiet NaN + tagSymbol + interned symbol ID
//   - Node: Quiet NaN + tagNode + (pool id << 40 | packed unit reference)
//   - Special: Quiet NaN + tagSpecial + special ID (nil/true/false and the
//     substrate-internal stack markers)
//
// A Cell is exactly CellSize bytes and is the minimum allocation quantum of
// the pool set: every pool width is a multiple of it.
type Cell uint64

// CellSize is the width of one value cell in bytes.
const CellSize = 8

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// Tag values (shifted into position)
	tagNode    uint64 = 0x0001000000000000 // pool-allocated node reference
	tagInt     uint64 = 0x0002000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0003000000000000 // nil, true, false, stack markers
	tagSymbol  uint64 = 0x0004000000000000 // interned symbol ID

	// Sign bit for 48-bit integer sign extension
	intSignBit uint64 = 0x0000800000000000

	// Mask for sign extension
	intSignExtend uint64 = 0xFFFF000000000000
)

// Special payloads. The first three are language-visible; the rest exist
// only inside the memory substrate (data stack bookkeeping) and must never
// escape to evaluator-visible storage.
const (
	specialNil    uint64 = 0
	specialTrue   uint64 = 1
	specialFalse  uint64 = 2
	specialEnd    uint64 = 3 // "end of data" marker above the stack top
	specialTrash  uint64 = 4 // freshly pushed, not yet initialized
	specialPoison uint64 = 5 // capacity boundary of the data stack
)

// Pre-defined special cells
const (
	Nil   Cell = Cell(nanBits | tagSpecial | specialNil)
	True  Cell = Cell(nanBits | tagSpecial | specialTrue)
	False Cell = Cell(nanBits | tagSpecial | specialFalse)

	// End marks the slot immediately above the data stack's top.
	End Cell = Cell(nanBits | tagSpecial | specialEnd)

	// Trash is stamped into a just-pushed slot before the caller
	// initializes it. A Trash cell is not collector-safe.
	Trash Cell = Cell(nanBits | tagSpecial | specialTrash)

	// Poison occupies the last slot of the data stack's backing storage.
	// A push that lands on it triggers expansion.
	Poison Cell = Cell(nanBits | tagSpecial | specialPoison)
)

// SmallInt range (48-bit signed)
const (
	MaxSmallInt int64 = (1 << 47) - 1
	MinSmallInt int64 = -(1 << 47)
)

// ---------------------------------------------------------------------------
// Kind checking
// ---------------------------------------------------------------------------

// IsFloat returns true if c represents a float64 value.
// A cell is a float if it's not one of our tagged NaN values. This includes
// regular numbers, infinities, and "real" NaN values.
func (c Cell) IsFloat() bool {
	bits := uint64(c)

	// Exponent not all 1s: a regular float.
	if (bits & 0x7FF0000000000000) != 0x7FF0000000000000 {
		return true
	}

	// Exponent all 1s with zero mantissa: +Inf or -Inf, valid floats.
	mantissa := bits & 0x000FFFFFFFFFFFFF
	if mantissa == 0 {
		return true
	}

	// A NaN. Signaling NaNs (quiet bit clear) are treated as floats.
	if (bits & nanBits) != nanBits {
		return true
	}

	// Quiet NaN with no tag bits set is a "real" quiet NaN, still a float.
	return (bits & tagMask) == 0
}

// IsSmallInt returns true if c represents a small integer.
func (c Cell) IsSmallInt() bool {
	return (uint64(c) & (nanBits | tagMask)) == (nanBits | tagInt)
}

// IsNode returns true if c references a pool-allocated node.
func (c Cell) IsNode() bool {
	return (uint64(c) & (nanBits | tagMask)) == (nanBits | tagNode)
}

// IsSymbol returns true if c represents an interned symbol.
func (c Cell) IsSymbol() bool {
	return (uint64(c) & (nanBits | tagMask)) == (nanBits | tagSymbol)
}

// IsSpecial returns true if c is one of the special cells.
func (c Cell) IsSpecial() bool {
	return (uint64(c) & (nanBits | tagMask)) == (nanBits | tagSpecial)
}

// IsNil returns true if c is the nil cell.
func (c Cell) IsNil() bool {
	return c == Nil
}

// IsBool returns true if c is true or false.
func (c Cell) IsBool() bool {
	return c == True || c == False
}

// IsMarker returns true if c is one of the substrate-internal markers
// (End, Trash, Poison). Marker cells must never be visible to the
// evaluator; the data stack uses them for bookkeeping only.
func (c Cell) IsMarker() bool {
	return c == End || c == Trash || c == Poison
}

// ---------------------------------------------------------------------------
// Float operations
// ---------------------------------------------------------------------------

// Float64 returns c as a float64.
// Panics if c is not a float.
func (c Cell) Float64() float64 {
	if !c.IsFloat() {
		panic("Cell.Float64: not a float")
	}
	return math.Float64frombits(uint64(c))
}

// FromFloat64 creates a Cell from a float64.
func FromFloat64(f float64) Cell {
	return Cell(math.Float64bits(f))
}

// ---------------------------------------------------------------------------
// SmallInt operations
// ---------------------------------------------------------------------------

// SmallInt returns c as an int64.
// Panics if c is not a small integer.
func (c Cell) SmallInt() int64 {
	if !c.IsSmallInt() {
		panic("Cell.SmallInt: not a small integer")
	}
	payload := uint64(c) & payloadMask

	// Sign extend from 48 bits to 64 bits
	if (payload & intSignBit) != 0 {
		payload |= intSignExtend
	}
	return int64(payload)
}

// FromSmallInt creates a Cell from an int64.
// Panics if n is outside the SmallInt range.
func FromSmallInt(n int64) Cell {
	if n > MaxSmallInt || n < MinSmallInt {
		panic("FromSmallInt: value out of range")
	}
	return Cell(nanBits | tagInt | (uint64(n) & payloadMask))
}

// TryFromSmallInt creates a Cell from an int64, returning false if out of range.
func TryFromSmallInt(n int64) (Cell, bool) {
	if n > MaxSmallInt || n < MinSmallInt {
		return Nil, false
	}
	return Cell(nanBits | tagInt | (uint64(n) & payloadMask)), true
}

// ---------------------------------------------------------------------------
// Node reference operations
// ---------------------------------------------------------------------------

// NodeCell returns the pool id and unit reference encoded in c.
// Panics if c is not a node cell.
func (c Cell) NodeCell() (PoolID, NodeRef) {
	if !c.IsNode() {
		panic("Cell.NodeCell: not a node")
	}
	payload := uint64(c) & payloadMask
	return PoolID(payload >> 40), NodeRef(payload & refMask)
}

// FromNode creates a Cell referencing a pool-allocated node.
func FromNode(pool PoolID, ref NodeRef) Cell {
	if ref == NilRef {
		panic("FromNode: nil node reference")
	}
	payload := uint64(pool)<<40 | (uint64(ref) & refMask)
	return Cell(nanBits | tagNode | payload)
}

// ---------------------------------------------------------------------------
// Symbol operations
// ---------------------------------------------------------------------------

// SymbolID returns the symbol ID encoded in c.
// Panics if c is not a symbol.
func (c Cell) SymbolID() uint32 {
	if !c.IsSymbol() {
		panic("Cell.SymbolID: not a symbol")
	}
	return uint32(uint64(c) & payloadMask)
}

// FromSymbolID creates a Cell from a symbol ID.
func FromSymbolID(id uint32) Cell {
	return Cell(nanBits | tagSymbol | uint64(id))
}

// ---------------------------------------------------------------------------
// Boolean operations
// ---------------------------------------------------------------------------

// Bool returns c as a bool.
// Panics if c is not true or false.
func (c Cell) Bool() bool {
	switch c {
	case True:
		return true
	case False:
		return false
	default:
		panic("Cell.Bool: not a boolean")
	}
}

// FromBool creates a Cell from a bool.
func FromBool(b bool) Cell {
	if b {
		return True
	}
	return False
}

// IsTruthy returns true if c is considered "truthy" in conditionals.
// Only false and nil are falsy; everything else is truthy.
func (c Cell) IsTruthy() bool {
	return c != False && c != Nil
}
