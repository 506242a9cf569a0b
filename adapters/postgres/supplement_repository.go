package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"supptrace/domain/core"
	"supptrace/domain/intake"
	"supptrace/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SupplementRepositoryImpl implements SupplementRepository for PostgreSQL
type SupplementRepositoryImpl struct {
	db *sqlx.DB
}

// NewSupplementRepository creates a new PostgreSQL supplement repository
func NewSupplementRepository(db *sqlx.DB) ports.SupplementRepository {
	return &SupplementRepositoryImpl{db: db}
}

// GetSupplement retrieves a user supplement by id
func (r *SupplementRepositoryImpl) GetSupplement(ctx context.Context, id core.UserSupplementID) (*intake.UserSupplement, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, canonical_name, primary_metric, mechanism_note, lifecycle, created_at
		FROM user_supplements
		WHERE id = $1
	`, id.UUID())

	s, err := scanSupplement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSupplementNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListUserSupplements returns all supplements tracked by a user
func (r *SupplementRepositoryImpl) ListUserSupplements(ctx context.Context, userID core.UserID) ([]intake.UserSupplement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, canonical_name, primary_metric, mechanism_note, lifecycle, created_at
		FROM user_supplements
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID.UUID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var supplements []intake.UserSupplement
	for rows.Next() {
		s, err := scanSupplement(rows)
		if err != nil {
			return nil, err
		}
		supplements = append(supplements, *s)
	}
	return supplements, rows.Err()
}

// SaveSupplement persists a supplement record (upsert on id)
func (r *SupplementRepositoryImpl) SaveSupplement(ctx context.Context, s *intake.UserSupplement) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_supplements (id, user_id, name, canonical_name, primary_metric, mechanism_note, lifecycle, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			canonical_name = EXCLUDED.canonical_name,
			primary_metric = EXCLUDED.primary_metric,
			mechanism_note = EXCLUDED.mechanism_note
	`, s.ID.UUID(), s.UserID.UUID(), s.Name, s.CanonicalName, s.PrimaryMetric, s.MechanismNote, string(s.Lifecycle))
	return err
}

// TransitionLifecycle moves a supplement out of testing. The WHERE clause
// enforces the one-way rule: a terminal lifecycle never reverts.
func (r *SupplementRepositoryImpl) TransitionLifecycle(ctx context.Context, id core.UserSupplementID, to intake.Lifecycle) error {
	if !to.IsTerminal() {
		return core.NewValidationError("lifecycle", "transition target must be terminal")
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_supplements SET lifecycle = $2
		WHERE id = $1 AND lifecycle = $3
	`, id.UUID(), string(to), string(intake.LifecycleTesting))
	return err
}

func scanSupplement(row rowScanner) (*intake.UserSupplement, error) {
	var (
		id, userID                    uuid.UUID
		name, canonical, metric, note string
		lifecycle                     string
		createdAt                     time.Time
	)
	if err := row.Scan(&id, &userID, &name, &canonical, &metric, &note, &lifecycle, &createdAt); err != nil {
		return nil, err
	}
	return &intake.UserSupplement{
		ID:            core.UserSupplementID(id.String()),
		UserID:        core.UserID(userID.String()),
		Name:          name,
		CanonicalName: canonical,
		PrimaryMetric: metric,
		MechanismNote: note,
		Lifecycle:     intake.Lifecycle(lifecycle),
		CreatedAt:     core.NewTimestamp(createdAt),
	}, nil
}
