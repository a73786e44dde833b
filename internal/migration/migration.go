package migration

import (
	"context"

	"extruder/internal/errors"

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
		version: "1.1.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every step is
// idempotent so the runner is safe to call on each start.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createDatasetsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create datasets table")
	}

	if err := r.addDatasetColumns(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add datasets columns")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createDatasetsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS datasets (
			id UUID PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			format VARCHAR(16) NOT NULL,
			size BIGINT NOT NULL DEFAULT 0,
			row_count INTEGER NOT NULL DEFAULT 0,
			columns JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			indexed_at TIMESTAMP WITH TIME ZONE
		)
	`)
	return err
}

// addDatasetColumns upgrades 1.0.0 catalogs, which had no checksum or
// sampled row count.
func (r *MigrationRunner) addDatasetColumns(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'datasets' AND column_name = 'checksum'
			) THEN
				ALTER TABLE datasets ADD COLUMN checksum VARCHAR(64) NOT NULL DEFAULT '';
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'datasets' AND column_name = 'sampled_rows'
			) THEN
				ALTER TABLE datasets ADD COLUMN sampled_rows INTEGER NOT NULL DEFAULT 0;
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at DESC)
	`)
	return err
}
