package state

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	engine_id     TEXT NOT NULL,
	profile_name  TEXT,
	tick_hz       INTEGER NOT NULL,
	started_at    TEXT NOT NULL,
	ended_at      TEXT
);

CREATE TABLE IF NOT EXISTS snapshots (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	tick            INTEGER NOT NULL,
	captured_at     TEXT NOT NULL,
	scalars         BLOB NOT NULL,
	mode            TEXT NOT NULL,
	profile_name    TEXT,
	expression_json TEXT NOT NULL,
	startled        INTEGER NOT NULL DEFAULT 0,
	transitioning   INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_run_tick ON snapshots(run_id, tick);

CREATE TABLE IF NOT EXISTS events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	tick          INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	from_value    TEXT,
	to_value      TEXT,
	rule          TEXT,
	reason        TEXT,
	tension       REAL NOT NULL,
	progress      REAL NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
`

// #endregion schema

// #region store-struct
// Store persists engine runs and sampled snapshots in SQLite for later inspection.
type Store struct {
	db *sql.DB
}

// Run describes one engine lifetime recorded in the store.
type Run struct {
	RunID       string
	EngineID    string
	ProfileName string
	TickHz      int
	StartedAt   time.Time
	EndedAt     time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region runs
// BeginRun registers a new engine run and returns it.
func (s *Store) BeginRun(engineID, profileName string, tickHz int) (Run, error) {
	run := Run{
		RunID:       uuid.New().String(),
		EngineID:    engineID,
		ProfileName: profileName,
		TickHz:      tickHz,
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, engine_id, profile_name, tick_hz, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.EngineID, run.ProfileName, run.TickHz, run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// EndRun stamps the end time of a run.
func (s *Store) EndRun(runID string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE runs SET ended_at = ? WHERE run_id = ?`, at.UTC().Format(time.RFC3339Nano), runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, engine_id, profile_name, tick_hz, started_at, ended_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var profileName, ended sql.NullString
		var started string
		if err := rows.Scan(&r.RunID, &r.EngineID, &profileName, &r.TickHz, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ProfileName = profileName.String
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if ended.Valid {
			r.EndedAt, _ = time.Parse(time.RFC3339Nano, ended.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// #endregion runs

// #region snapshots
// RecordSnapshot stores one snapshot under runID.
func (s *Store) RecordSnapshot(runID string, snap Snapshot) error {
	exprJSON, err := json.Marshal(snap.Expression)
	if err != nil {
		return fmt.Errorf("marshal expression: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (run_id, tick, captured_at, scalars, mode, profile_name, expression_json, startled, transitioning)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.Tick, snap.At.UTC().Format(time.RFC3339Nano), encodeScalars(snap.Scalars),
		string(snap.Mode), snap.ProfileName, string(exprJSON), snap.Startled, snap.Transitioning,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns up to limit snapshots of a run, newest first.
func (s *Store) ListSnapshots(runID string, limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT tick, captured_at, scalars, mode, profile_name, expression_json, startled, transitioning
		 FROM snapshots WHERE run_id = ? ORDER BY tick DESC LIMIT ?`, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var captured, mode, exprJSON string
		var profileName sql.NullString
		var blob []byte
		if err := rows.Scan(&snap.Tick, &captured, &blob, &mode, &profileName, &exprJSON, &snap.Startled, &snap.Transitioning); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.At, _ = time.Parse(time.RFC3339Nano, captured)
		snap.Scalars = decodeScalars(blob)
		snap.Mode = Mode(mode)
		snap.ProfileName = profileName.String
		var expr profile.Expression
		if err := json.Unmarshal([]byte(exprJSON), &expr); err != nil {
			return nil, fmt.Errorf("unmarshal expression: %w", err)
		}
		snap.Expression = expr
		out = append(out, snap)
	}
	return out, rows.Err()
}

// #endregion snapshots

// #region scalar-encoding
func encodeScalars(s Scalars) []byte {
	buf := make([]byte, int(NumScalars)*8)
	for i := Scalar(0); i < NumScalars; i++ {
		binary.LittleEndian.PutUint64(buf[int(i)*8:], math.Float64bits(s.At(i)))
	}
	return buf
}

func decodeScalars(b []byte) Scalars {
	var s Scalars
	for i := Scalar(0); i < NumScalars; i++ {
		off := int(i) * 8
		if off+8 <= len(b) {
			s.Set(i, math.Float64frombits(binary.LittleEndian.Uint64(b[off:])))
		}
	}
	return s
}

// #endregion scalar-encoding
