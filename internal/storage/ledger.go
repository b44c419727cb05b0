// Package storage persists build history and moves index snapshots between
// the local disk and file stores.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/utsushi/internal/models"
)

// Ledger records index builds in SQLite.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewLedger(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS build_runs (
		run_id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		candidates INTEGER NOT NULL,
		indexed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		index_size INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_build_runs_started_at ON build_runs(started_at);

	CREATE TABLE IF NOT EXISTS build_failures (
		run_id TEXT NOT NULL,
		identifier TEXT NOT NULL,
		stage TEXT NOT NULL,
		error TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES build_runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_build_failures_run_id ON build_failures(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordRun stores a finished build and its failures in one transaction.
func (l *Ledger) RecordRun(ctx context.Context, r *models.BuildReport) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO build_runs (run_id, mode, source, status, candidates, indexed, failed, index_size, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, string(r.Mode), r.Source, string(r.Status), r.Candidates, r.Indexed, r.Failed,
		r.IndexSize, r.StartedAt.UTC(), r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(r.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO build_failures (run_id, identifier, stage, error) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()
		for _, f := range r.Failures {
			if _, err := stmt.ExecContext(ctx, r.RunID, f.Identifier, string(f.Stage), f.Err); err != nil {
				return fmt.Errorf("failed to insert failure: %w", err)
			}
		}
	}
	return tx.Commit()
}

// GetRun returns a recorded build with its failures.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*models.BuildReport, error) {
	var (
		r          models.BuildReport
		mode       string
		status     string
		durationMS int64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT run_id, mode, source, status, candidates, indexed, failed, index_size, started_at, duration_ms
		 FROM build_runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &mode, &r.Source, &status, &r.Candidates, &r.Indexed, &r.Failed, &r.IndexSize, &r.StartedAt, &durationMS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}
	r.Mode = models.BuildMode(mode)
	r.Status = models.BuildStatus(status)
	r.Duration = time.Duration(durationMS) * time.Millisecond

	rows, err := l.db.QueryContext(ctx,
		`SELECT identifier, stage, error FROM build_failures WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f models.Failure
		var stage string
		if err := rows.Scan(&f.Identifier, &stage, &f.Err); err != nil {
			return nil, err
		}
		f.Stage = models.Stage(stage)
		r.Failures = append(r.Failures, f)
	}
	return &r, rows.Err()
}

// RecentRuns returns up to limit builds, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, mode, source, status, indexed, failed, started_at
		 FROM build_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.RunSummary
	for rows.Next() {
		var (
			s         models.RunSummary
			mode      string
			status    string
			startedAt time.Time
		)
		if err := rows.Scan(&s.RunID, &mode, &s.Source, &status, &s.Indexed, &s.Failed, &startedAt); err != nil {
			return nil, err
		}
		s.Mode = models.BuildMode(mode)
		s.Status = models.BuildStatus(status)
		s.StartedAt = startedAt.UTC().Format(time.RFC3339)
		runs = append(runs, &s)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of recorded builds.
func (l *Ledger) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM build_runs`).Scan(&n)
	return n, err
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
