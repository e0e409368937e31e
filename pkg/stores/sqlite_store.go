package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite store for the given database path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// Init opens the database and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Connection-level setting, the DSN flag alone is not enough.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded filesystem.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SaveRun persists a run and its records in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *engine.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, plan_id, status, started_at, completed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.PlanID,
		string(run.Status),
		run.StartedAt.UTC(),
		run.CompletedAt.UTC(),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, rec := range run.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO execution_records (run_id, resource_id, verb, outcome, error_detail, attempts, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			string(rec.ResourceID),
			string(rec.Verb),
			string(rec.Outcome),
			rec.ErrorDetail,
			rec.Attempts,
			rec.StartedAt.UTC(),
			rec.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert execution record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID, including all execution records.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*engine.Run, error) {
	run := &engine.Run{}
	var durationMS int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, status, started_at, completed_at, duration_ms
		FROM runs
		WHERE id = ?
	`, id).Scan(
		&run.ID,
		&run.PlanID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&durationMS,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond

	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_id, verb, outcome, error_detail, attempts, started_at, duration_ms
		FROM execution_records
		WHERE run_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec engine.ExecutionRecord
		var recDurationMS int64
		err := rows.Scan(
			&rec.ResourceID,
			&rec.Verb,
			&rec.Outcome,
			&rec.ErrorDetail,
			&rec.Attempts,
			&rec.StartedAt,
			&recDurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		rec.Duration = time.Duration(recDurationMS) * time.Millisecond
		run.Records = append(run.Records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]engine.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, status, started_at, completed_at, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []engine.Run{}
	for rows.Next() {
		var run engine.Run
		var durationMS int64
		err := rows.Scan(
			&run.ID,
			&run.PlanID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&durationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}
