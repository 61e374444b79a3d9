package mem

import "testing"

// ---------------------------------------------------------------------------
// Band boundaries
// ---------------------------------------------------------------------------

// Element width must be consistent with the declared band boundaries: the
// array band reports the cell width, the byte band reports 1, the two
// outliers report their special widths, and everything else reports
// pointer width.
func TestElementWidthBands(t *testing.T) {
	for f := FlavorArray; f < NumFlavors; f++ {
		got := f.ElementWidth()

		var want int
		switch {
		case f <= MaxFlavorArray:
			want = CellSize
		case f >= MinFlavorBytes:
			want = 1
		case f == FlavorHashList:
			want = hashWidth
		case f == FlavorBookmark:
			want = bookmarkWidth
		default:
			want = pointerWidth
		}

		if got != want {
			t.Errorf("ElementWidth(%v) = %d, want %d", f, got, want)
		}
	}
}

func TestElementWidthCorruptPanics(t *testing.T) {
	mustPanic(t, "corrupt flavor", func() { FlavorCorrupt.ElementWidth() })
	mustPanic(t, "out-of-range flavor", func() { NumFlavors.ElementWidth() })
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func TestFlavorPredicates(t *testing.T) {
	arrayLike := []Flavor{
		FlavorArray, FlavorVarList, FlavorDetails, FlavorPairList,
		FlavorPatch, FlavorPartial, FlavorHandle, FlavorLibrary,
		FlavorFeed, FlavorInstruction, FlavorDataStack,
	}
	for _, f := range arrayLike {
		if !f.IsArrayLike() {
			t.Errorf("%v should be array-like", f)
		}
		if f.IsByteLike() || f.IsUTF8Like() {
			t.Errorf("%v should not be byte- or UTF-8-like", f)
		}
	}

	pointerBand := []Flavor{
		FlavorKeyList, FlavorPointerList, FlavorGuardList,
		FlavorHashList, FlavorBookmark,
	}
	for _, f := range pointerBand {
		if f.IsArrayLike() || f.IsByteLike() || f.IsUTF8Like() {
			t.Errorf("%v should be in the pointer band only", f)
		}
	}

	if !FlavorBinary.IsByteLike() || FlavorBinary.IsUTF8Like() {
		t.Error("binary is byte-like but not UTF-8")
	}
	for _, f := range []Flavor{FlavorString, FlavorSymbol} {
		if !f.IsByteLike() || !f.IsUTF8Like() {
			t.Errorf("%v should be byte-like and UTF-8-like", f)
		}
	}

	if FlavorCorrupt.IsArrayLike() || FlavorCorrupt.IsByteLike() || FlavorCorrupt.IsUTF8Like() {
		t.Error("corrupt flavor belongs to no band")
	}
}

// Every ordinal's band membership is decided by its position relative to
// the boundaries, so the bands must be contiguous and ordered.
func TestBandOrdering(t *testing.T) {
	if !(FlavorArray < MaxFlavorArray) {
		t.Error("array band must span more than one flavor")
	}
	if !(MaxFlavorArray < FlavorKeyList) {
		t.Error("pointer band must follow the array band")
	}
	if !(FlavorBookmark < MinFlavorBytes) {
		t.Error("byte band must follow the pointer band")
	}
	if !(MinFlavorBytes < MinFlavorUTF8) {
		t.Error("binary must precede the UTF-8 flavors")
	}
	if MinFlavorUTF8 >= NumFlavors {
		t.Error("UTF-8 band must be populated")
	}
}

func TestFlavorString(t *testing.T) {
	if got := FlavorDataStack.String(); got != "datastack" {
		t.Errorf("String() = %q, want %q", got, "datastack")
	}
	if got := Flavor(200).String(); got != "flavor(200)" {
		t.Errorf("String() = %q, want %q", got, "flavor(200)")
	}
}
