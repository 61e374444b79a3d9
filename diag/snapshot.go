// Package diag captures, encodes, and persists diagnostics snapshots of a
// Reed runtime's memory substrate: per-pool occupancy, reserved bytes
// against the ballast target, data stack geometry, and guard depth.
package diag

import (
	"time"

	"github.com/reedlang/reed/mem"
)

// PoolSnapshot is a point-in-time view of one pool.
type PoolSnapshot struct {
	Name            string `cbor:"1,keyasint"`
	Width           int    `cbor:"2,keyasint"`
	UnitsPerSegment int    `cbor:"3,keyasint"`
	Segments        int    `cbor:"4,keyasint"`
	Has             int    `cbor:"5,keyasint"`
	Free            int    `cbor:"6,keyasint"`
}

// Live returns the number of claimed units at snapshot time.
func (p PoolSnapshot) Live() int { return p.Has - p.Free }

// StackSnapshot is a point-in-time view of the data stack.
type StackSnapshot struct {
	Depth    int `cbor:"1,keyasint"`
	Capacity int `cbor:"2,keyasint"`
}

// GuardSnapshot is a point-in-time view of the depth guard.
type GuardSnapshot struct {
	Depth    int `cbor:"1,keyasint"`
	MaxDepth int `cbor:"2,keyasint"`
}

// Snapshot is one diagnostics capture of a runtime.
type Snapshot struct {
	TakenAt       time.Time      `cbor:"1,keyasint"`
	Pools         []PoolSnapshot `cbor:"2,keyasint"`
	ReservedBytes int            `cbor:"3,keyasint"`
	BallastTarget int            `cbor:"4,keyasint"`
	Stack         StackSnapshot  `cbor:"5,keyasint"`
	Guard         GuardSnapshot  `cbor:"6,keyasint"`
}

// OverBallast reports whether reserved memory exceeds the soft target.
func (s *Snapshot) OverBallast() bool {
	return s.ReservedBytes > s.BallastTarget
}

// Capture builds a snapshot of the runtime's current state. The runtime is
// single-mutator; callers capture between evaluation steps, never
// concurrently with them.
func Capture(rt *mem.Runtime) *Snapshot {
	snap := &Snapshot{
		TakenAt:       time.Now().UTC(),
		ReservedBytes: rt.Pools.ReservedBytes(),
		BallastTarget: rt.Pools.BallastTarget(),
		Stack: StackSnapshot{
			Depth:    rt.Stack.Depth(),
			Capacity: rt.Stack.Cap(),
		},
		Guard: GuardSnapshot{
			Depth:    rt.Guard.Depth(),
			MaxDepth: rt.Guard.MaxDepth(),
		},
	}

	for id := mem.PoolID(0); id < mem.NumPools; id++ {
		st := rt.Pools.Stats(id)
		snap.Pools = append(snap.Pools, PoolSnapshot{
			Name:            id.String(),
			Width:           st.Width,
			UnitsPerSegment: st.UnitsPerSegment,
			Segments:        st.Segments,
			Has:             st.Has,
			Free:            st.Free,
		})
	}
	return snap
}
