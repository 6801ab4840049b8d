// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history persists recording sync attempts in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Event is one sync attempt.
type Event struct {
	ID         int64         `json:"id"`
	At         time.Time     `json:"at"`
	CapturedAt time.Time     `json:"captured_at"`
	RemotePath string        `json:"remote_path"`
	LocalPath  string        `json:"local_path"`
	Outcome    string        `json:"outcome"`
	Bytes      int64         `json:"bytes"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Error      string        `json:"error,omitempty"`
}

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

// Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; the driver serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		captured_at TEXT NOT NULL,
		remote_path TEXT NOT NULL,
		local_path TEXT NOT NULL,
		outcome TEXT NOT NULL CHECK(outcome IN ('synced', 'transfer_failed', 'transcode_failed', 'session_failed')),
		bytes INTEGER NOT NULL DEFAULT 0,
		elapsed_ns INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sync_events_at ON sync_events(at);
	CREATE INDEX IF NOT EXISTS idx_sync_events_captured_at ON sync_events(captured_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends ev; ID is assigned by the database.
func (s *Store) Record(ctx context.Context, ev Event) error {
	query := `
	INSERT INTO sync_events (at, captured_at, remote_path, local_path, outcome, bytes, elapsed_ns, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ev.At.UTC().Format(time.RFC3339Nano),
		ev.CapturedAt.Format(time.RFC3339Nano),
		ev.RemotePath,
		ev.LocalPath,
		ev.Outcome,
		ev.Bytes,
		int64(ev.Elapsed),
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `
	SELECT id, at, captured_at, remote_path, local_path, outcome, bytes, elapsed_ns, error
	FROM sync_events
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var at, captured string
		var elapsed int64
		if err := rows.Scan(&ev.ID, &at, &captured, &ev.RemotePath, &ev.LocalPath, &ev.Outcome, &ev.Bytes, &elapsed, &ev.Error); err != nil {
			return nil, err
		}
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse at: %w", err)
		}
		if ev.CapturedAt, err = time.Parse(time.RFC3339Nano, captured); err != nil {
			return nil, fmt.Errorf("parse captured_at: %w", err)
		}
		ev.Elapsed = time.Duration(elapsed)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountByOutcome summarizes the whole table.
func (s *Store) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM sync_events GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// Prune deletes events older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_events WHERE at < ?`, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune sync events: %w", err)
	}
	return res.RowsAffected()
}
