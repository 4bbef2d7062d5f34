// Package storage provides SQLite-backed persistence for load history and sent digests.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/hunterboard/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db            *sql.DB
	maxLoadEvents int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/hunterboard/data.db.
func New(maxLoadEvents int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "hunterboard", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxLoadEvents: maxLoadEvents}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS load_events (
			id     TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			cause  TEXT,
			rows   INTEGER NOT NULL DEFAULT 0,
			at     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS digests (
			id          TEXT PRIMARY KEY,
			detected_on TEXT NOT NULL UNIQUE,
			count       INTEGER NOT NULL,
			names       TEXT NOT NULL DEFAULT '[]',
			sent_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_load_events_at ON load_events(at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddLoadEvent records one sheet load and trims history to maxLoadEvents.
func (s *Storage) AddLoadEvent(e *models.LoadEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid load event: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`INSERT INTO load_events (id, status, cause, rows, at) VALUES (?,?,?,?,?)`,
		e.ID, e.Status, e.Cause, e.Rows, e.At.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert load event: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM load_events WHERE id NOT IN (
			SELECT id FROM load_events ORDER BY at DESC LIMIT ?
		)`, s.maxLoadEvents); err != nil {
		return fmt.Errorf("failed to enforce load event cap: %w", err)
	}

	return tx.Commit()
}

// RecentLoadEvents returns up to k load events, newest first.
func (s *Storage) RecentLoadEvents(k int) ([]models.LoadEvent, error) {
	rows, err := s.db.Query(`SELECT id, status, cause, rows, at FROM load_events ORDER BY at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query load events: %w", err)
	}
	defer rows.Close()

	var events []models.LoadEvent
	for rows.Next() {
		var e models.LoadEvent
		var cause sql.NullString
		var atNano int64
		if err := rows.Scan(&e.ID, &e.Status, &cause, &e.Rows, &atNano); err != nil {
			return nil, fmt.Errorf("failed to scan load event: %w", err)
		}
		e.Cause = cause.String
		e.At = time.Unix(0, atNano)
		events = append(events, e)
	}
	return events, rows.Err()
}

// AddDigest records a sent digest. A second digest for the same date fails.
func (s *Storage) AddDigest(d *models.Digest) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	names, err := json.Marshal(d.Names)
	if err != nil {
		return fmt.Errorf("failed to marshal names: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO digests (id, detected_on, count, names, sent_at) VALUES (?,?,?,?,?)`,
		d.ID, d.DetectedOn, d.Count, string(names), d.SentAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert digest: %w", err)
	}
	return nil
}

// HasDigest reports whether a digest was already sent for the detection date.
func (s *Storage) HasDigest(detectedOn string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM digests WHERE detected_on = ?`, detectedOn).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query digests: %w", err)
	}
	return n > 0, nil
}

// LatestDigest returns the most recently sent digest.
func (s *Storage) LatestDigest() (*models.Digest, error) {
	row := s.db.QueryRow(`SELECT id, detected_on, count, names, sent_at FROM digests ORDER BY sent_at DESC LIMIT 1`)
	var d models.Digest
	var names string
	var sentAtNano int64
	err := row.Scan(&d.ID, &d.DetectedOn, &d.Count, &names, &sentAtNano)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}
	if err := json.Unmarshal([]byte(names), &d.Names); err != nil {
		return nil, fmt.Errorf("failed to unmarshal names: %w", err)
	}
	d.SentAt = time.Unix(0, sentAtNano)
	return &d, nil
}
