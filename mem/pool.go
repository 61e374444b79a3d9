package mem

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Pool Set: fixed-size-class node allocator
// ---------------------------------------------------------------------------
//
// The pool set hands out uniformly-sized "units" (nodes). Each pool owns a
// chain of segments, each segment one contiguous byte block subdivided into
// units of the pool's width. Freed units go back on the pool's intrusive
// free list; segments are never returned to the Go heap before the pool set
// itself is dropped, so the allocator grows monotonically.
//
// Only the first byte of a unit is meaningful across all uses: it records
// whether the unit is free, and if not, what category of object claimed it.
// Everything else belongs to the claimant. Because units live in []byte
// segments and all access goes through byte reads and encoding/binary, no
// typed aliasing is involved.

// PoolID identifies one size class of the allocator.
type PoolID uint8

// The fixed pool table. Tiny through Big are the size classes used for
// series payloads; the named pools hold fixed-layout runtime objects.
const (
	PoolTiny   PoolID = iota // 2 cells: one-element payloads
	PoolSmall                // 4 cells: short payloads
	PoolMid                  // 8 cells: medium payloads
	PoolBig                  // raw 256 bytes: largest pooled payloads
	PoolSeries               // series descriptors
	PoolPairs                // pair lists (parameter lists)
	PoolFrames               // call frame objects
	PoolFeeds                // execution feed objects
	PoolSystem               // catch-all for miscellaneous runtime objects

	NumPools
)

var poolNames = [NumPools]string{
	"tiny", "small", "mid", "big", "series", "pairs", "frames", "feeds", "system",
}

// String returns the pool's diagnostic name.
func (id PoolID) String() string {
	if int(id) < len(poolNames) {
		return poolNames[id]
	}
	return fmt.Sprintf("pool(%d)", uint8(id))
}

// bigPool is the pseudo-id for payloads above BigThreshold, which are not
// pooled at all but tracked in the pool set's big table.
const bigPool PoolID = 0xFF

// BigThreshold is the width (in bytes) of the largest size-class pool. A
// payload is pooled when it fits in a unit alongside the reserved header
// cell, so the largest pooled payload is BigThreshold - CellSize bytes;
// anything larger gets an individual tracked allocation.
const BigThreshold = 256

// DefaultBallastTarget is the soft target (in bytes) for total reserved
// segment memory, used by diagnostics and heuristic tuning. It is never
// enforced by the allocator itself.
const DefaultBallastTarget = 4 << 20

// ---------------------------------------------------------------------------
// Node references
// ---------------------------------------------------------------------------

// NodeRef addresses one unit within one pool: a 16-bit segment index and a
// 24-bit unit index packed into 40 bits. References are stable for the life
// of the unit (segments never move).
type NodeRef uint64

const (
	refMask    = (uint64(1) << 40) - 1
	maxSegIdx  = 1<<16 - 1
	maxUnitIdx = 1<<24 - 1

	// NilRef is the empty reference (free-list terminator).
	NilRef NodeRef = NodeRef(refMask)
)

func makeRef(seg, idx int) NodeRef {
	return NodeRef(uint64(seg)<<24 | uint64(idx))
}

func (r NodeRef) seg() int { return int(uint64(r) >> 24) }
func (r NodeRef) idx() int { return int(uint64(r) & maxUnitIdx) }

// IsNil returns true if r is the empty reference.
func (r NodeRef) IsNil() bool { return r == NilRef }

// ---------------------------------------------------------------------------
// Unit header
// ---------------------------------------------------------------------------

// Unit header byte values. A zero header byte means the unit is free; any
// in-use unit has the high bit set plus a category in the low bits. The
// header byte is the only part of a unit the allocator ever interprets once
// the unit has been claimed.
const (
	headerFree byte = 0x00

	headerInUse byte = 0x80 // high bit: unit is claimed

	unitKindMask   byte = 0x0F
	UnitKindNone   byte = 0x00 // claimed but not yet categorized
	UnitKindCell   byte = 0x01 // holds value cells
	UnitKindSeries byte = 0x02 // holds a series descriptor
	UnitKindData   byte = 0x03 // holds series payload bytes
)

// Offset within a free unit where the forward free-list reference lives.
// Unit widths are always at least two cells, so this never escapes the unit.
const freeNextOffset = 8

// ---------------------------------------------------------------------------
// Fatal allocation failures
// ---------------------------------------------------------------------------

// AllocFatal is the panic payload for unrecoverable allocation failures:
// the underlying allocator cannot satisfy a segment request, or a pool has
// exhausted its addressable segment/unit space. Callers distinguish this
// from ordinary language-level errors; nothing recovers it except the
// outermost boundary.
type AllocFatal struct {
	Pool   PoolID
	Bytes  int
	Reason string
}

func (f AllocFatal) Error() string {
	return fmt.Sprintf("fatal allocation failure in %s pool (%d bytes): %s",
		f.Pool, f.Bytes, f.Reason)
}

// ---------------------------------------------------------------------------
// Pools and segments
// ---------------------------------------------------------------------------

// PoolSpec configures one pool at pool-set construction time.
// Width is in bytes and is rounded up to the cell size; UnitsPerSegment is
// how many units each fresh segment is sliced into.
type PoolSpec struct {
	Width           int
	UnitsPerSegment int
}

// Cells expresses a width as a multiple of the minimum cell size, the way
// the small and mid size classes are specified.
func Cells(n int) int { return n * CellSize }

// DefaultPoolSpecs returns the standard pool table, indexed by PoolID.
func DefaultPoolSpecs() []PoolSpec {
	specs := make([]PoolSpec, NumPools)
	specs[PoolTiny] = PoolSpec{Width: Cells(2), UnitsPerSegment: 512}
	specs[PoolSmall] = PoolSpec{Width: Cells(4), UnitsPerSegment: 256}
	specs[PoolMid] = PoolSpec{Width: Cells(8), UnitsPerSegment: 128}
	specs[PoolBig] = PoolSpec{Width: BigThreshold, UnitsPerSegment: 32}
	specs[PoolSeries] = PoolSpec{Width: Cells(4), UnitsPerSegment: 256}
	specs[PoolPairs] = PoolSpec{Width: Cells(2), UnitsPerSegment: 256}
	specs[PoolFrames] = PoolSpec{Width: Cells(8), UnitsPerSegment: 64}
	specs[PoolFeeds] = PoolSpec{Width: Cells(4), UnitsPerSegment: 64}
	specs[PoolSystem] = PoolSpec{Width: Cells(8), UnitsPerSegment: 64}
	return specs
}

// segment is one contiguously-allocated block subdivided into units of its
// pool's width. Segments belong to exactly one pool and live until the
// pool set is dropped.
type segment struct {
	data []byte
}

// pool is one size class: a segment chain plus an intrusive free list.
type pool struct {
	id          PoolID
	width       int
	unitsPerSeg int
	segments    []*segment
	freeHead    NodeRef
	freeCount   int
	hasCount    int // total units ever reserved; never decremented
}

// PoolSet is the fixed table of pools plus the big-allocation table.
// A PoolSet assumes a single mutator: none of its structures are
// internally synchronized.
type PoolSet struct {
	pools [NumPools]*pool

	// Payloads above BigThreshold, tracked individually.
	bigEntries  [][]byte
	bigFree     []int // recycled big-table indexes
	bigReserved int   // bytes currently held by big entries

	ballastTarget int
}

// NewPoolSet builds the fixed pool table. The slice is indexed by
// PoolID and must cover every pool; widths are rounded up to the cell size.
// Widths never change after construction.
func NewPoolSet(specs []PoolSpec) *PoolSet {
	if len(specs) != int(NumPools) {
		panic(fmt.Sprintf("NewPoolSet: expected %d pool specs, got %d", NumPools, len(specs)))
	}

	ps := &PoolSet{ballastTarget: DefaultBallastTarget}
	for i := range specs {
		spec := specs[i]
		if spec.Width <= 0 || spec.UnitsPerSegment <= 0 {
			panic(fmt.Sprintf("NewPoolSet: invalid spec for %s pool", PoolID(i)))
		}
		width := spec.Width
		if rem := width % CellSize; rem != 0 {
			width += CellSize - rem
		}
		if width < 2*CellSize {
			width = 2 * CellSize // room for the free-list forward reference
		}
		if spec.UnitsPerSegment > maxUnitIdx {
			panic(fmt.Sprintf("NewPoolSet: %s pool segment too large", PoolID(i)))
		}
		ps.pools[i] = &pool{
			id:          PoolID(i),
			width:       width,
			unitsPerSeg: spec.UnitsPerSegment,
			freeHead:    NilRef,
		}
	}
	return ps
}

// SetBallastTarget overrides the soft reserved-memory target used by
// diagnostics.
func (ps *PoolSet) SetBallastTarget(bytes int) {
	ps.ballastTarget = bytes
}

// BallastTarget returns the soft reserved-memory target.
func (ps *PoolSet) BallastTarget() int { return ps.ballastTarget }

func (ps *PoolSet) pool(id PoolID) *pool {
	if id >= NumPools {
		panic(fmt.Sprintf("PoolSet: invalid pool id %d", uint8(id)))
	}
	return ps.pools[id]
}

// ---------------------------------------------------------------------------
// Allocation and freeing
// ---------------------------------------------------------------------------

// Alloc pops one unit off the pool's free list, growing the pool by one
// segment first if the free list is empty. The unit comes back claimed
// (in-use, uncategorized); the claimant refines the category via
// SetUnitKind. Growth failure is fatal, not an ordinary error.
func (ps *PoolSet) Alloc(id PoolID) NodeRef {
	p := ps.pool(id)
	if p.freeHead == NilRef {
		p.grow()
	}

	ref := p.freeHead
	u := p.unit(ref)
	p.freeHead = refFromUnit(u)
	p.freeCount--

	u[0] = headerInUse
	return ref
}

// Free returns a unit to its pool's free list: the header byte is marked
// free, the forward reference points at the old free-list head, and the
// unit becomes the new head (LIFO reuse).
func (ps *PoolSet) Free(id PoolID, ref NodeRef) {
	p := ps.pool(id)
	u := p.unit(ref)
	if u[0] == headerFree {
		panic("PoolSet.Free: unit already free")
	}

	u[0] = headerFree
	refToUnit(u, p.freeHead)
	p.freeHead = ref
	p.freeCount++
}

// grow allocates one fresh segment and threads its units into the free
// list back-to-front, so units allocate front-to-back within the segment.
func (p *pool) grow() {
	if len(p.segments) > maxSegIdx {
		panic(AllocFatal{Pool: p.id, Bytes: p.width * p.unitsPerSeg,
			Reason: "segment address space exhausted"})
	}

	size := p.width * p.unitsPerSeg
	seg := &segment{data: allocSegment(p.id, size)}
	segIdx := len(p.segments)
	p.segments = append(p.segments, seg)
	p.hasCount += p.unitsPerSeg
	p.freeCount += p.unitsPerSeg

	for i := p.unitsPerSeg - 1; i >= 0; i-- {
		u := seg.data[i*p.width : (i+1)*p.width]
		u[0] = headerFree
		refToUnit(u, p.freeHead)
		p.freeHead = makeRef(segIdx, i)
	}
}

// allocSegment requests one raw block from the Go allocator. A failed
// request is unrecoverable: there is no point trying to build an ordinary
// error object when the heap itself is gone, so the failure is promoted to
// an AllocFatal panic.
func allocSegment(id PoolID, size int) (data []byte) {
	defer func() {
		if r := recover(); r != nil {
			panic(AllocFatal{Pool: id, Bytes: size,
				Reason: fmt.Sprintf("segment allocation failed: %v", r)})
		}
	}()
	return make([]byte, size)
}

func (p *pool) unit(ref NodeRef) []byte {
	s := ref.seg()
	i := ref.idx()
	if s >= len(p.segments) || i >= p.unitsPerSeg {
		panic(fmt.Sprintf("pool %s: node reference out of range", p.id))
	}
	return p.segments[s].data[i*p.width : (i+1)*p.width]
}

func refFromUnit(u []byte) NodeRef {
	return NodeRef(binary.LittleEndian.Uint64(u[freeNextOffset:]) & refMask)
}

func refToUnit(u []byte, ref NodeRef) {
	binary.LittleEndian.PutUint64(u[freeNextOffset:], uint64(ref)&refMask)
}

// ---------------------------------------------------------------------------
// Unit inspection (the collector-facing contract)
// ---------------------------------------------------------------------------

// IsFree reports whether a unit is free, reading only the reserved header
// byte. Valid regardless of what typed view last wrote the unit.
func (ps *PoolSet) IsFree(id PoolID, ref NodeRef) bool {
	return ps.pool(id).unit(ref)[0] == headerFree
}

// UnitKind returns the category a claimed unit was stamped with.
// Panics if the unit is free.
func (ps *PoolSet) UnitKind(id PoolID, ref NodeRef) byte {
	u := ps.pool(id).unit(ref)
	if u[0] == headerFree {
		panic("PoolSet.UnitKind: unit is free")
	}
	return u[0] & unitKindMask
}

// SetUnitKind stamps a claimed unit's category into its header byte.
// Panics if the unit is free.
func (ps *PoolSet) SetUnitKind(id PoolID, ref NodeRef, kind byte) {
	u := ps.pool(id).unit(ref)
	if u[0] == headerFree {
		panic("PoolSet.SetUnitKind: unit is free")
	}
	u[0] = headerInUse | (kind & unitKindMask)
}

// UnitBytes returns the full storage of a claimed unit, header byte
// included. The claimant owns everything past byte 0.
// Panics if the unit is free.
func (ps *PoolSet) UnitBytes(id PoolID, ref NodeRef) []byte {
	u := ps.pool(id).unit(ref)
	if u[0] == headerFree {
		panic("PoolSet.UnitBytes: unit is free")
	}
	return u
}

// WalkUnits enumerates every unit in a pool, live and free, in segment
// order. The collector uses this to discover the allocated set; fn returns
// false to stop the walk early.
func (ps *PoolSet) WalkUnits(id PoolID, fn func(ref NodeRef, inUse bool, unit []byte) bool) {
	p := ps.pool(id)
	for s, seg := range p.segments {
		for i := 0; i < p.unitsPerSeg; i++ {
			u := seg.data[i*p.width : (i+1)*p.width]
			if !fn(makeRef(s, i), u[0] != headerFree, u) {
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Payload allocation (series content)
// ---------------------------------------------------------------------------

// PoolForSize returns the smallest size-class pool whose width can hold a
// payload of n bytes. ok is false when n exceeds BigThreshold and the
// payload must be individually allocated instead.
func (ps *PoolSet) PoolForSize(n int) (id PoolID, ok bool) {
	for _, candidate := range [...]PoolID{PoolTiny, PoolSmall, PoolMid, PoolBig} {
		if n <= ps.pools[candidate].width {
			return candidate, true
		}
	}
	return 0, false
}

// allocPayload obtains storage for n bytes of series content: a size-class
// unit when n fits under BigThreshold, otherwise a tracked big-table entry.
// The returned pool id is bigPool for big-table entries.
func (ps *PoolSet) allocPayload(n int) (PoolID, NodeRef, []byte) {
	// One cell of the unit is reserved for the header.
	if id, ok := ps.PoolForSize(n + CellSize); ok {
		ref := ps.Alloc(id)
		ps.SetUnitKind(id, ref, UnitKindData)
		// Payload starts after the header cell.
		return id, ref, ps.pool(id).unit(ref)[CellSize:]
	}

	data := allocSegment(bigPool, n)
	ps.bigReserved += n

	var idx int
	if len(ps.bigFree) > 0 {
		idx = ps.bigFree[len(ps.bigFree)-1]
		ps.bigFree = ps.bigFree[:len(ps.bigFree)-1]
		ps.bigEntries[idx] = data
	} else {
		idx = len(ps.bigEntries)
		if idx > maxUnitIdx {
			panic(AllocFatal{Pool: bigPool, Bytes: n, Reason: "big table exhausted"})
		}
		ps.bigEntries = append(ps.bigEntries, data)
	}
	return bigPool, NodeRef(idx), data
}

// payloadBytes resolves payload storage allocated by allocPayload.
func (ps *PoolSet) payloadBytes(id PoolID, ref NodeRef) []byte {
	if id == bigPool {
		data := ps.bigEntries[ref.idx()]
		if data == nil {
			panic("PoolSet.payloadBytes: big entry already freed")
		}
		return data
	}
	return ps.pool(id).unit(ref)[CellSize:]
}

// freePayload releases payload storage. Size-class payloads go back on
// their pool's free list; big entries are dropped and their table slot
// recycled.
func (ps *PoolSet) freePayload(id PoolID, ref NodeRef) {
	if id == bigPool {
		idx := ref.idx()
		if ps.bigEntries[idx] == nil {
			panic("PoolSet.freePayload: big entry already freed")
		}
		ps.bigReserved -= len(ps.bigEntries[idx])
		ps.bigEntries[idx] = nil
		ps.bigFree = append(ps.bigFree, idx)
		return
	}
	ps.Free(id, ref)
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// PoolStats is a point-in-time view of one pool, for diagnostics.
type PoolStats struct {
	ID              PoolID
	Width           int
	UnitsPerSegment int
	Segments        int
	Has             int // total units ever reserved
	Free            int // units currently on the free list
}

// Live returns the number of currently claimed units.
func (s PoolStats) Live() int { return s.Has - s.Free }

// Stats returns the current statistics for one pool.
func (ps *PoolSet) Stats(id PoolID) PoolStats {
	p := ps.pool(id)
	return PoolStats{
		ID:              p.id,
		Width:           p.width,
		UnitsPerSegment: p.unitsPerSeg,
		Segments:        len(p.segments),
		Has:             p.hasCount,
		Free:            p.freeCount,
	}
}

// ReservedBytes returns the total bytes held in segments and big-table
// entries. This only ever grows for segments; big entries are subtracted
// when freed.
func (ps *PoolSet) ReservedBytes() int {
	total := ps.bigReserved
	for _, p := range ps.pools {
		total += len(p.segments) * p.width * p.unitsPerSeg
	}
	return total
}
