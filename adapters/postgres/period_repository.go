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

// PeriodRepositoryImpl implements PeriodRepository for PostgreSQL
type PeriodRepositoryImpl struct {
	db *sqlx.DB
}

// NewPeriodRepository creates a new PostgreSQL period repository
func NewPeriodRepository(db *sqlx.DB) ports.PeriodRepository {
	return &PeriodRepositoryImpl{db: db}
}

// GetPeriods returns all periods for a supplement, ascending by start date
func (r *PeriodRepositoryImpl) GetPeriods(ctx context.Context, supplementID core.UserSupplementID) ([]intake.Period, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_supplement_id, start_date, end_date, created_at
		FROM intake_periods
		WHERE user_supplement_id = $1
		ORDER BY start_date ASC
	`, supplementID.UUID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPeriods(rows)
}

// GetPeriod retrieves a single period by id
func (r *PeriodRepositoryImpl) GetPeriod(ctx context.Context, periodID core.PeriodID) (*intake.Period, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_supplement_id, start_date, end_date, created_at
		FROM intake_periods
		WHERE id = $1
	`, string(periodID))

	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrPeriodNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SavePeriod persists a new period
func (r *PeriodRepositoryImpl) SavePeriod(ctx context.Context, period *intake.Period) error {
	var end *time.Time
	if period.End != nil {
		t := period.End.Time()
		end = &t
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO intake_periods (id, user_supplement_id, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, string(period.ID), period.SupplementID.UUID(), period.Start.Time(), end)
	return err
}

// ClosePeriod sets the end date on an open period
func (r *PeriodRepositoryImpl) ClosePeriod(ctx context.Context, periodID core.PeriodID, end core.LocalDate) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE intake_periods SET end_date = $2
		WHERE id = $1 AND end_date IS NULL
	`, string(periodID), end.Time())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrPeriodNotFound
	}
	return nil
}

// GetUserPeriods returns all periods across a user's supplements
func (r *PeriodRepositoryImpl) GetUserPeriods(ctx context.Context, userID core.UserID) ([]intake.Period, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.user_supplement_id, p.start_date, p.end_date, p.created_at
		FROM intake_periods p
		JOIN user_supplements s ON s.id = p.user_supplement_id
		WHERE s.user_id = $1
		ORDER BY p.start_date ASC
	`, userID.UUID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPeriods(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPeriod(row rowScanner) (*intake.Period, error) {
	var (
		id           string
		supplementID uuid.UUID
		start        time.Time
		end          *time.Time
		createdAt    time.Time
	)
	if err := row.Scan(&id, &supplementID, &start, &end, &createdAt); err != nil {
		return nil, err
	}
	p := &intake.Period{
		ID:           core.PeriodID(id),
		SupplementID: core.UserSupplementID(supplementID.String()),
		Start:        core.DateOf(start),
		CreatedAt:    core.NewTimestamp(createdAt),
	}
	if end != nil {
		d := core.DateOf(*end)
		p.End = &d
	}
	return p, nil
}

func scanPeriods(rows *sql.Rows) ([]intake.Period, error) {
	var periods []intake.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}
