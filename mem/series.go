package mem

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Series: variable-length objects backed by a pool node
// ---------------------------------------------------------------------------
//
// A series claims one unit from the series-descriptor pool. The unit's
// bytes hold the descriptor: the shared header byte, the flavor byte, the
// element count and capacity, and a reference to the content storage. The
// content lives in a size-class pool unit when it fits under BigThreshold,
// or in an individually tracked allocation above it.
//
// Descriptor layout within the unit:
//
//	[0]     header byte (shared with the allocator; the only cross-view byte)
//	[1]     flavor
//	[2:4]   reserved flags
//	[4:8]   length in elements
//	[8:12]  capacity in elements
//	[12]    content pool id
//	[16:24] content reference
//
// Bytes 8..16 are clobbered by the free-list forward reference once the
// descriptor is freed, which is fine: a freed descriptor has no content.

const (
	serFlavorOffset = 1
	serLenOffset    = 4
	serCapOffset    = 8
	serPoolOffset   = 12
	serRefOffset    = 16
)

// Series is a lightweight handle on a series node. Handles are values;
// copying one does not copy the series.
type Series struct {
	ps   *PoolSet
	node NodeRef
}

// NewSeries claims a series node with the given flavor and an initial
// capacity in elements. The flavor fixes the element width; a corrupt or
// out-of-range flavor panics.
func NewSeries(ps *PoolSet, flavor Flavor, capacity int) Series {
	width := flavor.ElementWidth()
	if capacity < 0 {
		panic("NewSeries: negative capacity")
	}

	node := ps.Alloc(PoolSeries)
	ps.SetUnitKind(PoolSeries, node, UnitKindSeries)

	pid, pref, _ := ps.allocPayload(capacity * width)

	d := ps.pool(PoolSeries).unit(node)
	d[serFlavorOffset] = byte(flavor)
	binary.LittleEndian.PutUint32(d[serLenOffset:], 0)
	binary.LittleEndian.PutUint32(d[serCapOffset:], uint32(capacity))
	d[serPoolOffset] = byte(pid)
	binary.LittleEndian.PutUint64(d[serRefOffset:], uint64(pref))

	return Series{ps: ps, node: node}
}

// OpenSeries rebuilds a handle from a node reference, as the collector does
// when walking the series pool. Panics if the unit is free or was not
// claimed as a series.
func OpenSeries(ps *PoolSet, node NodeRef) Series {
	if ps.UnitKind(PoolSeries, node) != UnitKindSeries {
		panic("OpenSeries: node is not a series")
	}
	return Series{ps: ps, node: node}
}

// Node returns the reference of the series' descriptor node.
func (s Series) Node() NodeRef { return s.node }

// ToCell returns a value cell referencing this series.
func (s Series) ToCell() Cell { return FromNode(PoolSeries, s.node) }

// SeriesFromCell rebuilds a series handle from a node cell.
// Panics if the cell does not reference a series node.
func SeriesFromCell(ps *PoolSet, c Cell) Series {
	pid, ref := c.NodeCell()
	if pid != PoolSeries {
		panic("SeriesFromCell: cell does not reference the series pool")
	}
	return OpenSeries(ps, ref)
}

func (s Series) desc() []byte {
	d := s.ps.pool(PoolSeries).unit(s.node)
	if d[0] == headerFree {
		panic("Series: descriptor node has been freed")
	}
	return d
}

// Flavor returns the series' flavor. Panics if the descriptor was freed —
// reading a flavor through a dead handle is always a caller bug.
func (s Series) Flavor() Flavor {
	return Flavor(s.desc()[serFlavorOffset])
}

// Len returns the element count.
func (s Series) Len() int {
	return int(binary.LittleEndian.Uint32(s.desc()[serLenOffset:]))
}

// Cap returns the element capacity.
func (s Series) Cap() int {
	return int(binary.LittleEndian.Uint32(s.desc()[serCapOffset:]))
}

// ElementWidth returns the per-element width fixed by the flavor.
func (s Series) ElementWidth() int {
	return s.Flavor().ElementWidth()
}

func (s Series) setLen(n int) {
	binary.LittleEndian.PutUint32(s.desc()[serLenOffset:], uint32(n))
}

// SetLen adjusts the element count without touching storage.
// Panics if n exceeds the capacity.
func (s Series) SetLen(n int) {
	if n < 0 || n > s.Cap() {
		panic(fmt.Sprintf("Series.SetLen: length %d out of range (cap %d)", n, s.Cap()))
	}
	s.setLen(n)
}

// content returns the series' storage, sliced to capacity.
func (s Series) content() []byte {
	d := s.desc()
	pid := PoolID(d[serPoolOffset])
	ref := NodeRef(binary.LittleEndian.Uint64(d[serRefOffset:]))
	width := Flavor(d[serFlavorOffset]).ElementWidth()
	capElems := int(binary.LittleEndian.Uint32(d[serCapOffset:]))
	return s.ps.payloadBytes(pid, ref)[:capElems*width]
}

// ---------------------------------------------------------------------------
// Expansion
// ---------------------------------------------------------------------------

// Expand grows the series' storage to hold at least newCap elements,
// relocating the content. Existing elements are preserved; references into
// the old storage become invalid.
func (s Series) Expand(newCap int) {
	if newCap <= s.Cap() {
		return
	}

	d := s.desc()
	width := s.ElementWidth()
	oldPool := PoolID(d[serPoolOffset])
	oldRef := NodeRef(binary.LittleEndian.Uint64(d[serRefOffset:]))
	live := s.Len() * width

	pid, pref, data := s.ps.allocPayload(newCap * width)
	copy(data, s.ps.payloadBytes(oldPool, oldRef)[:live])

	d[serPoolOffset] = byte(pid)
	binary.LittleEndian.PutUint64(d[serRefOffset:], uint64(pref))
	binary.LittleEndian.PutUint32(d[serCapOffset:], uint32(newCap))

	s.ps.freePayload(oldPool, oldRef)
}

// ensure makes room for n more elements, doubling capacity when growing.
func (s Series) ensure(n int) {
	need := s.Len() + n
	if need <= s.Cap() {
		return
	}
	newCap := s.Cap() * 2
	if newCap < need {
		newCap = need
	}
	if newCap < 4 {
		newCap = 4
	}
	s.Expand(newCap)
}

// ---------------------------------------------------------------------------
// Cell element access (array band)
// ---------------------------------------------------------------------------

func (s Series) checkArray() {
	if !s.Flavor().IsArrayLike() {
		panic(fmt.Sprintf("Series: %s series does not hold cells", s.Flavor()))
	}
}

// At returns the cell at index i.
// Panics if the series is not array-like or i is out of range.
func (s Series) At(i int) Cell {
	s.checkArray()
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("Series.At: index %d out of range (len %d)", i, s.Len()))
	}
	return Cell(binary.LittleEndian.Uint64(s.content()[i*CellSize:]))
}

// SetAt stores a cell at index i.
// Panics if the series is not array-like or i is out of range.
func (s Series) SetAt(i int, c Cell) {
	s.checkArray()
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("Series.SetAt: index %d out of range (len %d)", i, s.Len()))
	}
	binary.LittleEndian.PutUint64(s.content()[i*CellSize:], uint64(c))
}

// Append adds a cell at the end, growing storage as needed.
func (s Series) Append(c Cell) {
	s.checkArray()
	s.ensure(1)
	n := s.Len()
	s.setLen(n + 1)
	binary.LittleEndian.PutUint64(s.content()[n*CellSize:], uint64(c))
}

// cellAtRaw reads a cell slot without length checking. The data stack uses
// this for its sentinel slots above the formal length.
func (s Series) cellAtRaw(i int) Cell {
	return Cell(binary.LittleEndian.Uint64(s.content()[i*CellSize:]))
}

// setCellAtRaw writes a cell slot without length checking.
func (s Series) setCellAtRaw(i int, c Cell) {
	binary.LittleEndian.PutUint64(s.content()[i*CellSize:], uint64(c))
}

// ---------------------------------------------------------------------------
// Byte element access (byte band)
// ---------------------------------------------------------------------------

func (s Series) checkBytes() {
	if !s.Flavor().IsByteLike() {
		panic(fmt.Sprintf("Series: %s series does not hold bytes", s.Flavor()))
	}
}

// Bytes returns the live bytes of a byte-band series.
// The slice aliases series storage and is invalidated by expansion.
func (s Series) Bytes() []byte {
	s.checkBytes()
	return s.content()[:s.Len()]
}

// AppendBytes adds bytes at the end, growing storage as needed.
func (s Series) AppendBytes(b []byte) {
	s.checkBytes()
	s.ensure(len(b))
	n := s.Len()
	s.setLen(n + len(b))
	copy(s.content()[n:], b)
}

// ---------------------------------------------------------------------------
// Freeing
// ---------------------------------------------------------------------------

// Free releases the series' content storage and returns the descriptor
// node to its pool. The handle is dead afterwards; the descriptor's flavor
// is stamped corrupt first so stale reads trip the diagnostic panic.
func (s Series) Free() {
	d := s.desc()
	pid := PoolID(d[serPoolOffset])
	ref := NodeRef(binary.LittleEndian.Uint64(d[serRefOffset:]))

	s.ps.freePayload(pid, ref)
	d[serFlavorOffset] = byte(FlavorCorrupt)
	s.ps.Free(PoolSeries, s.node)
}
