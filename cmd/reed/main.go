// Reed memory tool - exercises and inspects the Reed runtime memory substrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/reedlang/reed/diag"
	"github.com/reedlang/reed/manifest"
	"github.com/reedlang/reed/mem"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("reed.mem")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	configDir := flag.String("config", ".", "Directory to search for reed.toml")
	churn := flag.Int("churn", 10000, "Allocation churn iterations for the exercise workload")
	stackDepth := flag.Int("stack", 1000, "Cells pushed per stack exercise round")
	record := flag.Bool("record", false, "Record a snapshot to the configured SQLite database")
	list := flag.Bool("list", false, "List recorded snapshots and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reed [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs an allocation and stack exercise workload against the Reed\n")
		fmt.Fprintf(os.Stderr, "memory substrate and reports pool statistics.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  reed                       # Run the default workload, print stats\n")
		fmt.Fprintf(os.Stderr, "  reed -churn 100000 -record # Heavier churn, record a snapshot\n")
		fmt.Fprintf(os.Stderr, "  reed -list                 # Show recorded snapshots\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reed: %v\n", err)
		os.Exit(1)
	}

	if *list {
		if err := listSnapshots(m.SnapshotDBPath()); err != nil {
			fmt.Fprintf(os.Stderr, "reed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rt := mem.NewRuntime(m.RuntimeOptions())
	log.Infof("runtime created (ballast target %d bytes)", rt.Pools.BallastTarget())

	exercise(rt, *churn, *stackDepth)
	printStats(rt)

	if *record {
		id, err := recordSnapshot(rt, m.SnapshotDBPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "reed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("recorded snapshot %d to %s\n", id, m.SnapshotDBPath())
	}
}

// exercise churns the pools and the data stack the way a bursty evaluation
// workload would: interleaved claims and frees, deep push runs collected
// into arrays.
func exercise(rt *mem.Runtime, churn, stackDepth int) {
	log.Infof("exercising: %d churn iterations, %d-cell stack rounds", churn, stackDepth)

	// Pool churn: claim units across the size classes, free every other one.
	var held []struct {
		id  mem.PoolID
		ref mem.NodeRef
	}
	classes := []mem.PoolID{mem.PoolTiny, mem.PoolSmall, mem.PoolMid, mem.PoolFrames}
	for i := 0; i < churn; i++ {
		id := classes[i%len(classes)]
		ref := rt.Pools.Alloc(id)
		if i%2 == 0 {
			held = append(held, struct {
				id  mem.PoolID
				ref mem.NodeRef
			}{id, ref})
		} else {
			rt.Pools.Free(id, ref)
		}
	}
	for _, h := range held {
		rt.Pools.Free(h.id, h.ref)
	}

	// Stack rounds: push, collect, free the materialized arrays.
	for round := 0; round < 4; round++ {
		mark := rt.Stack.Mark()
		for i := 0; i < stackDepth; i++ {
			rt.Stack.PushCell(mem.FromSmallInt(int64(i)))
		}
		arr := rt.Stack.CollectFrom(mark)
		rt.CheckBalanced(mark)
		arr.Free()
	}
}

func printStats(rt *mem.Runtime) {
	fmt.Printf("%-8s %6s %6s %9s %9s %9s\n",
		"pool", "width", "segs", "has", "free", "live")
	for id := mem.PoolID(0); id < mem.NumPools; id++ {
		st := rt.Pools.Stats(id)
		fmt.Printf("%-8s %6d %6d %9d %9d %9d\n",
			st.ID, st.Width, st.Segments, st.Has, st.Free, st.Live())
	}
	fmt.Printf("\nreserved: %d bytes (ballast target %d)\n",
		rt.Pools.ReservedBytes(), rt.Pools.BallastTarget())
	fmt.Printf("stack: depth %d, capacity %d cells\n",
		rt.Stack.Depth(), rt.Stack.Cap())
}

func recordSnapshot(rt *mem.Runtime, dbPath string) (int64, error) {
	rec, err := diag.NewRecorder(dbPath)
	if err != nil {
		return 0, err
	}
	defer rec.Close()

	snap := diag.Capture(rt)
	if snap.OverBallast() {
		log.Warningf("reserved memory %d exceeds ballast target %d",
			snap.ReservedBytes, snap.BallastTarget)
	}
	return rec.Save(snap)
}

func listSnapshots(dbPath string) error {
	rec, err := diag.NewRecorder(dbPath)
	if err != nil {
		return err
	}
	defer rec.Close()

	infos, err := rec.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no snapshots recorded")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%6d  %s\n", info.ID, info.TakenAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
