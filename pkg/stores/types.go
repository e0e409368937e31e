package stores

import (
	"context"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Store persists runs and their execution records.
type Store interface {
	// Init opens the underlying database.
	Init(ctx context.Context) error

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context) error

	// Close releases the database connection.
	Close() error

	// SaveRun persists a completed run and all of its records.
	SaveRun(ctx context.Context, run *engine.Run) error

	// GetRun retrieves a run by ID, records included.
	GetRun(ctx context.Context, id string) (*engine.Run, error)

	// ListRuns returns the most recent runs, newest first. Records
	// are not loaded; use GetRun for the full detail.
	ListRuns(ctx context.Context, limit int) ([]engine.Run, error)
}
