package mem

import "fmt"

// ---------------------------------------------------------------------------
// Series flavors
// ---------------------------------------------------------------------------
//
// Every series node carries a Flavor: a small ordinal classifying what the
// series holds. The ordering is deliberate — flavors are grouped into
// contiguous bands so that the questions the substrate asks on every
// generic series operation ("does this hold value cells?", "is this UTF-8
// text?", "how wide is one element?") collapse to one or two integer
// comparisons instead of a flag bundle or a lookup table.
//
// Band layout, low ordinals first:
//   - the array band: everything whose elements are value cells
//   - the pointer band: pointer-width auxiliary tables, with two width
//     outliers (hash lists use index-sized buckets, bookmark lists use a
//     small two-field struct)
//   - the byte band: binary data, then UTF-8 text (strings and symbols)

// Flavor classifies a series node's category and element width.
type Flavor uint8

const (
	// FlavorCorrupt is the diagnostic pseudo-flavor: a freed or
	// never-initialized descriptor. It has no elements and no width.
	FlavorCorrupt Flavor = iota

	// --- array band: elements are value cells ---

	FlavorArray       // plain array of cells
	FlavorVarList     // execution-context variable list
	FlavorDetails     // per-instance function/closure details
	FlavorPairList    // pair list (parameter descriptions)
	FlavorPatch       // virtual-binding override patch
	FlavorPartial     // partial-specialization splice
	FlavorHandle      // opaque handle payload
	FlavorLibrary     // loaded-library payload
	FlavorFeed        // instruction feed for the evaluator
	FlavorInstruction // instruction-carrying array
	FlavorDataStack   // the data stack's backing array

	// --- pointer band: pointer-width auxiliary tables ---

	FlavorKeyList     // symbol-key list of a context
	FlavorPointerList // generic pointer table
	FlavorGuardList   // node-protection list
	FlavorHashList    // hash buckets (index-sized elements)
	FlavorBookmark    // string index bookmarks (small-struct elements)

	// --- byte band: byte buffers, then UTF-8 text ---

	FlavorBinary // raw byte data
	FlavorString // UTF-8 text
	FlavorSymbol // interned UTF-8 symbol text

	NumFlavors
)

// Band boundaries. Keeping these as named constants means the band
// predicates survive flavor insertions as long as the bands stay contiguous.
const (
	MaxFlavorArray = FlavorDataStack // last cell-element flavor
	MinFlavorBytes = FlavorBinary    // first byte-element flavor
	MinFlavorUTF8  = FlavorString    // first UTF-8 flavor
)

// Element widths for the pointer band and its outliers.
const (
	pointerWidth  = 8  // generic pointer-table element
	hashWidth     = 4  // hash bucket: one 32-bit index
	bookmarkWidth = 16 // bookmark: codepoint index + byte offset
)

var flavorNames = [NumFlavors]string{
	"corrupt", "array", "varlist", "details", "pairlist", "patch",
	"partial", "handle", "library", "feed", "instruction", "datastack",
	"keylist", "pointerlist", "guardlist", "hashlist", "bookmark",
	"binary", "string", "symbol",
}

// String returns the flavor's diagnostic name.
func (f Flavor) String() string {
	if f < NumFlavors {
		return flavorNames[f]
	}
	return fmt.Sprintf("flavor(%d)", uint8(f))
}

// IsArrayLike returns true if the flavor's elements are value cells.
func (f Flavor) IsArrayLike() bool {
	return f >= FlavorArray && f <= MaxFlavorArray
}

// IsByteLike returns true if the flavor's elements are single bytes
// (binary data or UTF-8 text).
func (f Flavor) IsByteLike() bool {
	return f >= MinFlavorBytes && f < NumFlavors
}

// IsUTF8Like returns true if the flavor holds UTF-8 text.
func (f Flavor) IsUTF8Like() bool {
	return f >= MinFlavorUTF8 && f < NumFlavors
}

// ElementWidth returns the per-element width in bytes for a flavor.
// The width is a pure function of the ordinal: three range comparisons
// plus the two named outliers. Allocation code uses this to size storage
// before the series' full type is known.
//
// Panics on FlavorCorrupt — a corrupt descriptor has no elements, and
// asking for its width is always a caller bug.
func (f Flavor) ElementWidth() int {
	if f == FlavorCorrupt {
		panic("Flavor.ElementWidth: corrupt flavor has no element width")
	}
	if f >= NumFlavors {
		panic(fmt.Sprintf("Flavor.ElementWidth: invalid flavor %d", uint8(f)))
	}
	if f <= MaxFlavorArray {
		return CellSize
	}
	if f >= MinFlavorBytes {
		return 1
	}
	switch f {
	case FlavorHashList:
		return hashWidth
	case FlavorBookmark:
		return bookmarkWidth
	}
	return pointerWidth
}
