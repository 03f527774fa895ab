package migration

import (
	"context"
	"fmt"

	"gowbic/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createArtifactsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create artifacts table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// createArtifactsTable builds the append-only artifact ledger. The seq
// column records insertion order so reads replay in the order writes
// happened, independent of timestamp resolution.
func (r *MigrationRunner) createArtifactsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS artifacts (
			seq BIGSERIAL,
			id VARCHAR(64) PRIMARY KEY,
			sweep_id VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			variant_id VARCHAR(128),
			payload JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_artifacts_sweep_id ON artifacts(sweep_id)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_sweep_kind ON artifacts(sweep_id, kind)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_variant_id ON artifacts(variant_id)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
