package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// Journal records runs, attempts and final failures in SQLite
type Journal struct {
	db *sql.DB
}

// Ensure Journal implements port.RunJournal
var _ port.RunJournal = (*Journal)(nil)

// Open opens or creates the journal database
func Open(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// workers write concurrently; one connection serializes them
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	j := &Journal{db: db}

	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return j, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ping checks database connectivity
func (j *Journal) Ping() error {
	return j.db.Ping()
}

// migrate creates or updates the database schema
func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			workers INTEGER NOT NULL DEFAULT 0,
			total_tasks INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			worker INTEGER NOT NULL,
			remote_path TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			plan TEXT,
			bytes INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			final BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS failures (
			run_id TEXT NOT NULL,
			remote_path TEXT NOT NULL,
			reason TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, remote_path),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_run_path ON attempts(run_id, remote_path)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	return nil
}

// StartRun inserts a run row
func (j *Journal) StartRun(ctx context.Context, runID string, workers, totalTasks int, startedAt time.Time) error {
	query := `
		INSERT OR IGNORE INTO runs (id, started_at, workers, total_tasks)
		VALUES (?, ?, ?, ?)
	`
	if _, err := j.db.ExecContext(ctx, query, runID, startedAt.UnixNano(), workers, totalTasks); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordAttempt appends one attempt to a run
func (j *Journal) RecordAttempt(ctx context.Context, runID string, report domain.AttemptReport, at time.Time) error {
	query := `
		INSERT INTO attempts (
			run_id, worker, remote_path, attempt, status, reason, plan,
			bytes, duration_ms, error, final, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	o := report.Outcome
	_, err := j.db.ExecContext(ctx, query,
		runID, report.Worker, report.Task.RemotePath, report.Attempt, string(o.Status),
		nullString(string(o.Reason)), nullString(o.Plan.String()),
		o.Bytes, o.Duration.Milliseconds(), nullString(o.ErrorMessage()), report.Final,
		at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// FinishRun stores the final totals and failures of a run
func (j *Journal) FinishRun(ctx context.Context, summary domain.RunSummary, finishedAt time.Time) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// a run that was never started in this journal still gets a row
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (id, started_at, total_tasks) VALUES (?, ?, ?)
	`, summary.RunID, finishedAt.Add(-summary.Elapsed).UnixNano(), summary.TotalTasks)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, total_tasks = ?, succeeded = ?, skipped = ?, failed = ?,
			attempts = ?, bytes = ?, elapsed_ms = ?
		WHERE id = ?
	`, finishedAt.UnixNano(), summary.TotalTasks, summary.Succeeded, summary.Skipped, summary.Failed,
		summary.Attempts, summary.TotalBytes, summary.Elapsed.Milliseconds(), summary.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	for _, f := range summary.Failures {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO failures (run_id, remote_path, reason, error)
			VALUES (?, ?, ?, ?)
		`, summary.RunID, f.RemotePath, string(f.Reason), nullString(f.Error))
		if err != nil {
			return fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]port.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, started_at, finished_at, workers, total_tasks, succeeded,
			   skipped, failed, attempts, bytes, elapsed_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []port.RunRecord
	for rows.Next() {
		var (
			r         port.RunRecord
			started   int64
			finished  sql.NullInt64
			elapsedMS int64
		)
		err := rows.Scan(&r.ID, &started, &finished, &r.Workers, &r.TotalTasks, &r.Succeeded,
			&r.Skipped, &r.Failed, &r.Attempts, &r.Bytes, &elapsedMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// ListFailures returns the final failures of a run, with the number of
// attempts each task got
func (j *Journal) ListFailures(ctx context.Context, runID string) ([]port.FailureRecord, error) {
	query := `
		SELECT f.run_id, f.remote_path, f.reason, f.error,
			   (SELECT COUNT(*) FROM attempts a
				WHERE a.run_id = f.run_id AND a.remote_path = f.remote_path AND a.attempt > 0)
		FROM failures f
		WHERE f.run_id = ?
		ORDER BY f.remote_path
	`

	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []port.FailureRecord
	for rows.Next() {
		var (
			f      port.FailureRecord
			errMsg sql.NullString
		)
		if err := rows.Scan(&f.RunID, &f.RemotePath, &f.Reason, &errMsg, &f.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Error = errMsg.String
		failures = append(failures, f)
	}

	return failures, rows.Err()
}

// PruneOlderThan deletes runs that started before now-age, together with
// their attempts and failures
func (j *Journal) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UnixNano()

	result, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
