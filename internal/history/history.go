// Package history keeps a durable record of past test runs. Each run row
// stores its aggregate outcome; failures are stored per run so a regression
// can be traced back to the run that introduced it.
//
// Uses SQLite with WAL mode for concurrent read access.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/reprove/internal/report"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Run is one recorded test run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Failed     int
	PassRate   float64
}

// DB provides durable storage for run history.
type DB struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically; idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; keep a single connection to
	// avoid SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// RecordRun inserts a run and its failures in a single transaction: either
// the whole run is recorded or none of it is.
func (d *DB) RecordRun(ctx context.Context, run Run, failures []report.TestError) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, total, failed, pass_rate)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Total,
		run.Failed,
		run.PassRate,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for _, f := range failures {
		kind := "assertion"
		if f.Reason.Kind == report.FailureWorkerPanic {
			kind = "worker_panic"
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_failures (run_id, test_id, kind, message, location)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, f.Test, kind, f.Reason.Message, f.Reason.Location)
		if err != nil {
			return fmt.Errorf("record run failure: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first. UUIDv7 run IDs embed
// a timestamp, so ordering by id is ordering by start time.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, total, failed, pass_rate
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Total, &r.Failed, &r.PassRate); err != nil {
			return nil, fmt.Errorf("recent runs: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("recent runs: parse started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("recent runs: parse finished_at: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failures returns the recorded failures for a run.
func (d *DB) Failures(ctx context.Context, runID string) ([]report.TestError, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT test_id, kind, message, location
		FROM run_failures
		WHERE run_id = ?
		ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run failures: %w", err)
	}
	defer rows.Close()

	var failures []report.TestError
	for rows.Next() {
		var te report.TestError
		var kind string
		if err := rows.Scan(&te.Test, &kind, &te.Reason.Message, &te.Reason.Location); err != nil {
			return nil, fmt.Errorf("run failures: %w", err)
		}
		te.Reason.Kind = report.FailureAssertion
		if kind == "worker_panic" {
			te.Reason.Kind = report.FailureWorkerPanic
		}
		failures = append(failures, te)
	}
	return failures, rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// No migrations beyond the initial schema yet.

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}
