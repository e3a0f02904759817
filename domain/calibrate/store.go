package calibrate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists excellent calibrations in a local sqlite database so a
// restart against a known layout can warm start instead of re-deriving.
type Store struct {
	db *sql.DB
}

// migrations run in order on every open. Statements must stay idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS calibrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ui_hash TEXT NOT NULL,
		accuracy REAL NOT NULL,
		table_detected INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		record TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calibrations_ui_hash ON calibrations(ui_hash)`,
}

// OpenStore opens or creates the calibration database at path. The special
// path ":memory:" keeps everything in process, which the tests rely on.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open calibration store: %w", err)
	}
	// sqlite allows one writer; a single pooled connection also keeps
	// :memory: databases from vanishing between pool checkouts.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate calibration store: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	for i, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// Put inserts one record. Older records for the same layout stay around;
// Latest picks the newest by insertion order.
func (s *Store) Put(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode calibration record: %w", err)
	}
	detected := 0
	if rec.Result.TableDetected {
		detected = 1
	}
	_, err = s.db.Exec(
		`INSERT INTO calibrations (ui_hash, accuracy, table_detected, created_at, record)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.UIHash,
		rec.Result.AccuracyScore,
		detected,
		rec.SavedAt.UTC().Format(time.RFC3339Nano),
		string(raw),
	)
	if err != nil {
		return fmt.Errorf("insert calibration record: %w", err)
	}
	return nil
}

// Latest returns the most recently stored record for a layout hash. The
// second return is false when the layout has never been calibrated.
func (s *Store) Latest(uiHash string) (Record, bool, error) {
	row := s.db.QueryRow(
		`SELECT record FROM calibrations WHERE ui_hash = ? ORDER BY id DESC LIMIT 1`,
		uiHash,
	)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("query calibration record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode calibration record: %w", err)
	}
	return rec, true, nil
}

// Count reports how many records exist for a layout hash.
func (s *Store) Count(uiHash string) (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM calibrations WHERE ui_hash = ?`, uiHash)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count calibration records: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
