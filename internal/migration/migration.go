package migration

import (
	"context"

	"supptrace/internal/errors"

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
	if err := r.createUserSupplementsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create user_supplements table")
	}

	if err := r.createDailyEntriesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create daily_entries table")
	}

	if err := r.createIntakePeriodsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create intake_periods table")
	}

	if err := r.createEffectReportsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create effect_reports table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createUserSupplementsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS user_supplements (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			canonical_name TEXT NOT NULL DEFAULT '',
			primary_metric TEXT NOT NULL,
			mechanism_note TEXT NOT NULL DEFAULT '',
			lifecycle TEXT NOT NULL DEFAULT 'testing',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createDailyEntriesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS daily_entries (
			user_id UUID NOT NULL,
			local_date DATE NOT NULL,
			pain DOUBLE PRECISION,
			mood DOUBLE PRECISION,
			sleep_quality DOUBLE PRECISION,
			energy DOUBLE PRECISION,
			focus DOUBLE PRECISION,
			tags JSONB NOT NULL DEFAULT '[]',
			supplement_intake JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, local_date)
		)
	`)
	return err
}

func (r *MigrationRunner) createIntakePeriodsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS intake_periods (
			id UUID PRIMARY KEY,
			user_supplement_id UUID NOT NULL REFERENCES user_supplements(id),
			start_date DATE NOT NULL,
			end_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createEffectReportsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS effect_reports (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			user_supplement_id UUID NOT NULL REFERENCES user_supplements(id),
			status TEXT NOT NULL,
			primary_metric TEXT NOT NULL,
			effect_direction TEXT NOT NULL,
			effect_size DOUBLE PRECISION NOT NULL,
			absolute_change DOUBLE PRECISION,
			percent_change DOUBLE PRECISION,
			confidence_score DOUBLE PRECISION NOT NULL,
			sample_days_on INTEGER NOT NULL,
			sample_days_off INTEGER NOT NULL,
			days_excluded_confounds INTEGER NOT NULL,
			onset_days INTEGER,
			responder_percentile DOUBLE PRECISION,
			responder_label TEXT,
			mechanism_inference TEXT NOT NULL DEFAULT '',
			raw_context JSONB NOT NULL DEFAULT '{}',
			analysis_source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_user_supplements_user ON user_supplements(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_supplements_canonical ON user_supplements(canonical_name)`,
		`CREATE INDEX IF NOT EXISTS idx_intake_periods_supplement ON intake_periods(user_supplement_id, start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_effect_reports_pair ON effect_reports(user_id, user_supplement_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_entries_created ON daily_entries(user_id, created_at)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
