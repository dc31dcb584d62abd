// Package store persists test run history in SQLite.
//
// Two drivers are supported: the pure-Go modernc.org/sqlite ("sqlite", the
// default) and the cgo-based mattn/go-sqlite3 ("sqlite3"). The schema and
// queries are identical for both; timestamps are stored as unix milliseconds
// so neither driver's time conversion is involved.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"simatest/internal/logging"
	"simatest/internal/runner"
	"simatest/internal/store/sqldriver"
)

const (
	// DriverSQLite is modernc.org/sqlite.
	DriverSQLite = sqldriver.SQLite

	// DriverSQLite3 is github.com/mattn/go-sqlite3 (requires cgo).
	DriverSQLite3 = sqldriver.SQLite3
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// History is the run history database.
type History struct {
	db     *sql.DB
	mu     sync.RWMutex
	driver string
	dbPath string
}

// RunRecord is one stored run.
type RunRecord struct {
	ID          string          `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Root        string          `json:"root"`
	Attempted   int             `json:"attempted"`
	Failed      int             `json:"failed"`
	Interrupted bool            `json:"interrupted"`
	Outcomes    []OutcomeRecord `json:"outcomes,omitempty"`
}

// Totals returns the run's counts.
func (r RunRecord) Totals() runner.Totals {
	return runner.Totals{Attempted: r.Attempted, Failed: r.Failed}
}

// OutcomeRecord is one stored target outcome.
type OutcomeRecord struct {
	Seq        int    `json:"seq"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Strategy   string `json:"strategy"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Open creates or opens the history database at path.
func Open(driver, path string) (*History, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if !sqldriver.Valid(driver) {
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	h := &History{db: db, driver: driver, dbPath: path}
	if err := h.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.StoreDebug("history opened: driver=%s path=%s", driver, path)
	return h, nil
}

func dsn(driver, path string) string {
	if driver == DriverSQLite3 {
		return path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.dbPath
}

// Driver returns the database/sql driver name in use.
func (h *History) Driver() string {
	return h.driver
}

func (h *History) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		root TEXT NOT NULL,
		attempted INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		strategy TEXT,
		exit_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// RecordRun stores a report and returns its id. A report without a RunID
// gets a fresh UUID.
func (h *History) RecordRun(ctx context.Context, r runner.Report) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RecordRun")
	defer timer.Stop()

	id := r.RunID
	if id == "" {
		id = uuid.NewString()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, root, attempted, failed, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Root,
		r.Totals.Attempted, r.Totals.Failed, boolInt(r.Interrupted))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, o := range r.Outcomes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes (run_id, seq, name, kind, path, strategy, exit_code, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, o.Target.Name, string(o.Target.Kind), o.Target.Path, string(o.Strategy),
			o.ExitCode, o.Duration.Milliseconds(), o.ErrorText())
		if err != nil {
			return "", fmt.Errorf("failed to insert outcome %s: %w", o.Target.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	logging.Store("recorded run %s: %d attempted, %d failed", id, r.Totals.Attempted, r.Totals.Failed)
	return id, nil
}

// ListRuns returns the most recent runs first, without outcomes.
// A limit of zero or less returns every run.
func (h *History) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	query := `SELECT id, started_at, finished_at, root, attempted, failed, interrupted
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its outcomes. id may be a unique prefix.
func (h *History) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, root, attempted, failed, interrupted
		FROM runs WHERE id = ? OR substr(id, 1, ?) = ?
		ORDER BY (id = ?) DESC LIMIT 2`, id, len(id), id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var matches []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	run := matches[0]

	outRows, err := h.db.QueryContext(ctx, `
		SELECT seq, name, kind, path, COALESCE(strategy, ''), exit_code, duration_ms, COALESCE(error, '')
		FROM outcomes WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer outRows.Close()

	for outRows.Next() {
		var o OutcomeRecord
		if err := outRows.Scan(&o.Seq, &o.Name, &o.Kind, &o.Path, &o.Strategy,
			&o.ExitCode, &o.DurationMs, &o.Error); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		run.Outcomes = append(run.Outcomes, o)
	}
	if err := outRows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (RunRecord, error) {
	var (
		run               RunRecord
		started, finished int64
		interrupted       int
	)
	if err := s.Scan(&run.ID, &started, &finished, &run.Root, &run.Attempted, &run.Failed, &interrupted); err != nil {
		return RunRecord{}, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	run.Interrupted = interrupted != 0
	return run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
