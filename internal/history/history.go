// Package history keeps a sqlite record of batch runs and device outcomes.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/melih-ucgun/integra/internal/core"
	"github.com/melih-ucgun/integra/internal/fleet"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS outcomes (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	device      TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	log         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started_at);
`

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run summarizes one recorded batch.
type Run struct {
	ID        string
	State     string
	Started   time.Time
	Finished  time.Time
	Total     int
	Succeeded int
}

// Outcome is one recorded device attempt.
type Outcome struct {
	Device   string
	Status   core.Status
	Error    string
	Started  time.Time
	Finished time.Time
	Lines    []string
}

// Store implements fleet.Recorder on sqlite.
type Store struct {
	db *sql.DB
}

var _ fleet.Recorder = (*Store)(nil)

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordBatch stores a finished batch and its outcomes in one transaction.
func (s *Store) RecordBatch(ctx context.Context, r fleet.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, state, started_at, finished_at, total, succeeded) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.State.String(), r.Started.UnixMilli(), r.Finished.UnixMilli(),
		len(r.Outcomes), r.Count(core.StatusSucceeded))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (run_id, seq, device, status, error, started_at, finished_at, log) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range r.Outcomes {
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		_, err := stmt.ExecContext(ctx, r.ID, i, o.Device, o.Status.String(), msg,
			o.Started.UnixMilli(), o.Finished.UnixMilli(), strings.Join(o.Lines, "\n"))
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Device, err)
		}
	}
	return tx.Commit()
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, started_at, finished_at, total, succeeded FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.State, &started, &finished, &r.Total, &r.Succeeded); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started, r.Finished = time.UnixMilli(started), time.UnixMilli(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Outcomes returns the device outcomes of a run in submission order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT device, status, error, started_at, finished_at, log FROM outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var status, log string
		var started, finished int64
		if err := rows.Scan(&o.Device, &status, &o.Error, &started, &finished, &log); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = core.ParseStatus(status)
		o.Started, o.Finished = time.UnixMilli(started), time.UnixMilli(finished)
		if log != "" {
			o.Lines = strings.Split(log, "\n")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
