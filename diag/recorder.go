package diag

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound indicates the requested snapshot doesn't exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Recorder persists snapshots to a SQLite database, so memory behavior can
// be compared across runs and inspected offline.
type Recorder struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewRecorder opens (creating if needed) the snapshot database at dbPath.
func NewRecorder(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create table if needed
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		taken_at TEXT NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Recorder{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Path returns the database path.
func (r *Recorder) Path() string { return r.dbPath }

// Save persists a snapshot and returns its assigned id.
func (r *Recorder) Save(s *Snapshot) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := MarshalSnapshot(s)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}

	res, err := r.db.Exec(
		"INSERT INTO snapshots (taken_at, data) VALUES (?, ?)",
		s.TakenAt.Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return 0, fmt.Errorf("saving snapshot: %w", err)
	}
	return res.LastInsertId()
}

// Load retrieves a snapshot by id.
func (r *Recorder) Load(id int64) (*Snapshot, error) {
	var data []byte
	err := r.db.QueryRow("SELECT data FROM snapshots WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return UnmarshalSnapshot(data)
}

// Latest retrieves the most recently saved snapshot.
func (r *Recorder) Latest() (*Snapshot, error) {
	var data []byte
	err := r.db.QueryRow(
		"SELECT data FROM snapshots ORDER BY id DESC LIMIT 1").Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return UnmarshalSnapshot(data)
}

// SnapshotInfo describes one stored snapshot without decoding it.
type SnapshotInfo struct {
	ID      int64
	TakenAt time.Time
}

// List returns the stored snapshots, oldest first.
func (r *Recorder) List() ([]SnapshotInfo, error) {
	rows, err := r.db.Query("SELECT id, taken_at FROM snapshots ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var takenAt string
		if err := rows.Scan(&info.ID, &takenAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		info.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot timestamp: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
