// Package manifest handles reed.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/reedlang/reed/mem"
)

// Manifest represents a reed.toml runtime configuration.
type Manifest struct {
	Memory MemoryConfig `toml:"memory"`
	Stack  StackConfig  `toml:"stack"`
	Guard  GuardConfig  `toml:"guard"`
	Diag   DiagConfig   `toml:"diag"`

	// Dir is the directory containing the reed.toml file (set at load time).
	Dir string `toml:"-"`
}

// MemoryConfig tunes the pool set.
type MemoryConfig struct {
	// BallastTarget is the soft reserved-memory target in bytes, used by
	// diagnostics. Zero means the built-in default.
	BallastTarget int `toml:"ballast-target"`

	// Pools overrides units-per-segment for named pools. Widths are fixed
	// by the pool table and cannot be configured.
	Pools map[string]PoolConfig `toml:"pools"`
}

// PoolConfig overrides one pool's segment sizing.
type PoolConfig struct {
	UnitsPerSegment int `toml:"units-per-segment"`
}

// StackConfig tunes the data stack.
type StackConfig struct {
	InitialCells  int `toml:"initial-cells"`
	ExpandQuantum int `toml:"expand-quantum"`
}

// GuardConfig tunes the recursion depth guard.
type GuardConfig struct {
	MaxDepth int `toml:"max-depth"`

	// AddrSpan arms the supplementary address heuristic with the given
	// span in bytes. Zero leaves it disarmed.
	AddrSpan int `toml:"addr-span"`
}

// DiagConfig configures diagnostics output.
type DiagConfig struct {
	// SnapshotDB is the path of the SQLite snapshot database, relative to
	// the manifest directory unless absolute.
	SnapshotDB string `toml:"snapshot-db"`
}

// Default returns the configuration used when no reed.toml exists.
func Default() *Manifest {
	return &Manifest{
		Memory: MemoryConfig{BallastTarget: mem.DefaultBallastTarget},
		Stack: StackConfig{
			InitialCells:  mem.DefaultStackCells,
			ExpandQuantum: mem.DefaultStackQuantum,
		},
		Guard: GuardConfig{MaxDepth: mem.DefaultMaxDepth},
		Diag:  DiagConfig{SnapshotDB: "reed-snapshots.db"},
	}
}

// Load parses a reed.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "reed.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Re-apply defaults for fields the file zeroed or omitted.
	if m.Stack.InitialCells <= 0 {
		m.Stack.InitialCells = mem.DefaultStackCells
	}
	if m.Stack.ExpandQuantum <= 0 {
		m.Stack.ExpandQuantum = mem.DefaultStackQuantum
	}
	if m.Guard.MaxDepth <= 0 {
		m.Guard.MaxDepth = mem.DefaultMaxDepth
	}
	if m.Memory.BallastTarget <= 0 {
		m.Memory.BallastTarget = mem.DefaultBallastTarget
	}
	if m.Diag.SnapshotDB == "" {
		m.Diag.SnapshotDB = "reed-snapshots.db"
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a reed.toml file, then loads
// and returns the manifest. Returns the defaults if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "reed.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// SnapshotDBPath returns the absolute path of the snapshot database.
func (m *Manifest) SnapshotDBPath() string {
	if filepath.IsAbs(m.Diag.SnapshotDB) {
		return m.Diag.SnapshotDB
	}
	dir := m.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, m.Diag.SnapshotDB)
}

// RuntimeOptions converts the manifest into runtime creation options.
func (m *Manifest) RuntimeOptions() mem.Options {
	specs := mem.DefaultPoolSpecs()
	for name, pc := range m.Memory.Pools {
		if pc.UnitsPerSegment <= 0 {
			continue
		}
		for id := range specs {
			if mem.PoolID(id).String() == name {
				specs[id].UnitsPerSegment = pc.UnitsPerSegment
			}
		}
	}

	return mem.Options{
		PoolSpecs:     specs,
		BallastTarget: m.Memory.BallastTarget,
		StackCells:    m.Stack.InitialCells,
		StackQuantum:  m.Stack.ExpandQuantum,
		MaxDepth:      m.Guard.MaxDepth,
		AddrSpan:      m.Guard.AddrSpan,
	}
}
