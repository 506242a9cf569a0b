package postgres

import (
	"context"
	"encoding/json"
	"time"

	"supptrace/domain/core"
	"supptrace/domain/entry"
	"supptrace/ports"

	"github.com/jmoiron/sqlx"
)

// EntryRepositoryImpl implements EntryReader for PostgreSQL. The check-in
// and import pipelines own writes; the engine only reads.
type EntryRepositoryImpl struct {
	db *sqlx.DB
}

// NewEntryRepository creates a new PostgreSQL entry repository
func NewEntryRepository(db *sqlx.DB) ports.EntryReader {
	return &EntryRepositoryImpl{db: db}
}

// GetEntries returns the user's entries inside the range, ascending by date
func (r *EntryRepositoryImpl) GetEntries(ctx context.Context, userID core.UserID, dateRange core.DateRange) ([]entry.DailyEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, local_date, pain, mood, sleep_quality, energy, focus,
		       tags, supplement_intake, created_at, updated_at
		FROM daily_entries
		WHERE user_id = $1 AND local_date >= $2 AND local_date <= $3
		ORDER BY local_date ASC
	`, userID.UUID(), dateRange.From.Time(), dateRange.To.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []entry.DailyEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CountEntriesSince returns how many check-ins arrived at or after the timestamp
func (r *EntryRepositoryImpl) CountEntriesSince(ctx context.Context, userID core.UserID, since core.Timestamp) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM daily_entries
		WHERE user_id = $1 AND created_at >= $2
	`, userID.UUID(), since.Time()).Scan(&count)
	return count, err
}

type entryScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row entryScanner) (*entry.DailyEntry, error) {
	var (
		userID                           string
		localDate                        time.Time
		pain, mood, sleep, energy, focus *float64
		tagsJSON, intakeJSON             []byte
		createdAt, updatedAt             time.Time
	)
	if err := row.Scan(&userID, &localDate, &pain, &mood, &sleep, &energy, &focus,
		&tagsJSON, &intakeJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	e := &entry.DailyEntry{
		UserID:       core.UserID(userID),
		LocalDate:    core.DateOf(localDate),
		Pain:         pain,
		Mood:         mood,
		SleepQuality: sleep,
		Energy:       energy,
		Focus:        focus,
		CreatedAt:    core.NewTimestamp(createdAt),
		UpdatedAt:    core.NewTimestamp(updatedAt),
	}

	if len(tagsJSON) > 0 {
		json.Unmarshal(tagsJSON, &e.Tags)
	}
	if len(intakeJSON) > 0 {
		raw := map[string]string{}
		json.Unmarshal(intakeJSON, &raw)
		if len(raw) > 0 {
			e.SupplementIntake = make(map[core.UserSupplementID]entry.IntakeStatus, len(raw))
			for id, status := range raw {
				e.SupplementIntake[core.UserSupplementID(id)] = entry.IntakeStatus(status)
			}
		}
	}
	return e, nil
}

// UpsertEntry writes a check-in row, superseding any prior row for the same
// (user, date). Exposed for the dev seeding command and tests; the production
// check-in pipeline is a separate system.
func (r *EntryRepositoryImpl) UpsertEntry(ctx context.Context, e *entry.DailyEntry) error {
	tagsJSON, _ := json.Marshal(e.Tags)
	raw := make(map[string]string, len(e.SupplementIntake))
	for id, status := range e.SupplementIntake {
		raw[string(id)] = string(status)
	}
	intakeJSON, _ := json.Marshal(raw)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_entries (
			user_id, local_date, pain, mood, sleep_quality, energy, focus,
			tags, supplement_intake, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (user_id, local_date) DO UPDATE SET
			pain = EXCLUDED.pain,
			mood = EXCLUDED.mood,
			sleep_quality = EXCLUDED.sleep_quality,
			energy = EXCLUDED.energy,
			focus = EXCLUDED.focus,
			tags = EXCLUDED.tags,
			supplement_intake = EXCLUDED.supplement_intake,
			updated_at = NOW()
	`, e.UserID.UUID(), e.LocalDate.Time(), e.Pain, e.Mood, e.SleepQuality, e.Energy, e.Focus,
		tagsJSON, intakeJSON)
	return err
}
