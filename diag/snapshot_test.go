package diag

import (
	"testing"
	"time"

	"github.com/reedlang/reed/mem"
)

func exercisedRuntime(t *testing.T) *mem.Runtime {
	t.Helper()
	rt := mem.NewRuntime(mem.Options{StackCells: 8, StackQuantum: 8, MaxDepth: 32})

	for i := 0; i < 10; i++ {
		rt.Pools.Alloc(mem.PoolTiny)
	}
	rt.Stack.PushCell(mem.FromSmallInt(1))
	rt.Stack.PushCell(mem.FromSmallInt(2))
	rt.Guard.Enter()
	return rt
}

func TestCapture(t *testing.T) {
	rt := exercisedRuntime(t)
	snap := Capture(rt)

	if len(snap.Pools) != int(mem.NumPools) {
		t.Fatalf("pools = %d, want %d", len(snap.Pools), mem.NumPools)
	}
	if snap.Pools[mem.PoolTiny].Name != "tiny" {
		t.Errorf("pool name = %q, want %q", snap.Pools[mem.PoolTiny].Name, "tiny")
	}
	if live := snap.Pools[mem.PoolTiny].Live(); live != 10 {
		t.Errorf("tiny live = %d, want 10", live)
	}
	if snap.Stack.Depth != 2 {
		t.Errorf("stack depth = %d, want 2", snap.Stack.Depth)
	}
	if snap.Guard.Depth != 1 || snap.Guard.MaxDepth != 32 {
		t.Errorf("guard = %d/%d, want 1/32", snap.Guard.Depth, snap.Guard.MaxDepth)
	}
	if snap.ReservedBytes != rt.Pools.ReservedBytes() {
		t.Error("reserved bytes mismatch")
	}
	if snap.TakenAt.IsZero() {
		t.Error("capture timestamp is zero")
	}
}

func TestOverBallast(t *testing.T) {
	s := &Snapshot{ReservedBytes: 100, BallastTarget: 200}
	if s.OverBallast() {
		t.Error("under-target snapshot reported over ballast")
	}
	s.ReservedBytes = 300
	if !s.OverBallast() {
		t.Error("over-target snapshot not reported")
	}
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

func TestSnapshotWireRoundTrip(t *testing.T) {
	rt := exercisedRuntime(t)
	snap := Capture(rt)
	snap.TakenAt = snap.TakenAt.Truncate(time.Second) // CBOR time has finite precision

	data, err := MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}

	got, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}

	if !got.TakenAt.Equal(snap.TakenAt) {
		t.Errorf("TakenAt = %v, want %v", got.TakenAt, snap.TakenAt)
	}
	if len(got.Pools) != len(snap.Pools) {
		t.Fatalf("pools = %d, want %d", len(got.Pools), len(snap.Pools))
	}
	for i := range snap.Pools {
		if got.Pools[i] != snap.Pools[i] {
			t.Errorf("pool[%d] = %+v, want %+v", i, got.Pools[i], snap.Pools[i])
		}
	}
	if got.Stack != snap.Stack || got.Guard != snap.Guard {
		t.Error("stack or guard section mismatch")
	}
	if got.ReservedBytes != snap.ReservedBytes || got.BallastTarget != snap.BallastTarget {
		t.Error("accounting section mismatch")
	}
}

func TestUnmarshalSnapshotGarbage(t *testing.T) {
	if _, err := UnmarshalSnapshot([]byte("not cbor at all")); err == nil {
		t.Error("garbage input should fail to decode")
	}
}
