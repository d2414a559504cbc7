package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/openkenya/ecitizen-crawler/internal/directory"
)

// Ledger is a SQLite-backed record of per-stage completion markers and
// failed keys. It lives next to the artifact cache so a run directory is
// fully self-contained and resumable.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens or creates the ledger database under dir.
func OpenLedger(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	dbPath := filepath.Join(dir, "run_ledger.db")

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	// SQLite supports a single writer; the pool mirrors that.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	ledger := &Ledger{db: db}
	if err := ledger.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger tables: %w", err)
	}
	return ledger, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		phase TEXT NOT NULL,
		key TEXT NOT NULL,
		completed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (phase, key)
	);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phase TEXT NOT NULL,
		key TEXT NOT NULL,
		error TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_phase_key ON failures(phase, key);
	`
	_, err := l.db.Exec(schema)
	return err
}

// MarkComplete records that downstream processing finished for key.
func (l *Ledger) MarkComplete(ctx context.Context, phase string, key string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO checkpoints (phase, key) VALUES (?, ?)
		 ON CONFLICT(phase, key) DO NOTHING`, phase, key)
	if err != nil {
		return fmt.Errorf("mark checkpoint: %w", err)
	}
	return nil
}

// IsComplete reports whether a checkpoint exists for key.
func (l *Ledger) IsComplete(ctx context.Context, phase string, key string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM checkpoints WHERE phase = ? AND key = ?`, phase, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query checkpoint: %w", err)
	}
	return true, nil
}

// ClearFailure removes the failure-log entry for a key. Called when a key
// that failed on an earlier run succeeds, so a fully recovered run reports a
// clean log.
func (l *Ledger) ClearFailure(ctx context.Context, phase string, key string) error {
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM failures WHERE phase = ? AND key = ?`, phase, key); err != nil {
		return fmt.Errorf("clear failure log: %w", err)
	}
	return nil
}

// RecordFailure appends a failure-log entry for a key that exhausted its
// retries, replacing earlier entries for the same key so the log reflects
// the latest outcome.
func (l *Ledger) RecordFailure(ctx context.Context, phase string, key string, errText string) error {
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM failures WHERE phase = ? AND key = ?`, phase, key); err != nil {
		return fmt.Errorf("prune failure log: %w", err)
	}
	if _, err := l.db.ExecContext(ctx,
		`INSERT INTO failures (phase, key, error, recorded_at) VALUES (?, ?, ?, ?)`,
		phase, key, errText, time.Now().UTC()); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// Failures lists the failure log, oldest first.
func (l *Ledger) Failures(ctx context.Context) ([]directory.Failure, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT phase, key, error, recorded_at FROM failures ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []directory.Failure
	for rows.Next() {
		var f directory.Failure
		if err := rows.Scan(&f.Phase, &f.Key, &f.Error, &f.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return out, nil
}
