package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"supptrace/domain/core"
	"supptrace/domain/effect"
	"supptrace/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ReportRepositoryImpl implements ReportRepository for PostgreSQL.
// Reports are insert-and-supersede: every generation adds a row and
// reads resolve the newest created_at per pair.
type ReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &ReportRepositoryImpl{db: db}
}

// NewCommunityReader exposes the same table as an anonymized effect size
// source for percentile enrichment
func NewCommunityReader(db *sqlx.DB) ports.CommunityReader {
	return &ReportRepositoryImpl{db: db}
}

const reportColumns = `
	id, user_id, user_supplement_id, status, primary_metric, effect_direction,
	effect_size, absolute_change, percent_change, confidence_score,
	sample_days_on, sample_days_off, days_excluded_confounds,
	onset_days, responder_percentile, responder_label, mechanism_inference,
	raw_context, analysis_source, created_at`

// SaveReport inserts a new report version. Idempotent on id so the
// transient-failure retry path cannot double-insert.
func (r *ReportRepositoryImpl) SaveReport(ctx context.Context, report *effect.Report) error {
	rawContextJSON, _ := json.Marshal(report.RawContext)

	var responderLabel *string
	if report.ResponderLabel != nil {
		label := string(*report.ResponderLabel)
		responderLabel = &label
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO effect_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO NOTHING
	`, string(report.ID), report.UserID.UUID(), report.UserSupplementID.UUID(),
		string(report.Status), report.PrimaryMetric, string(report.Direction),
		report.EffectSize, report.AbsoluteChange, report.PercentChange, report.Confidence,
		report.SampleDaysOn, report.SampleDaysOff, report.DaysExcludedConfounds,
		report.OnsetDays, report.ResponderPercentile, responderLabel, report.MechanismLabel,
		rawContextJSON, string(report.Source), report.CreatedAt.Time())
	if err != nil {
		return classifyWriteError(err)
	}
	return nil
}

// LatestReport returns the authoritative report for the pair
func (r *ReportRepositoryImpl) LatestReport(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID) (*effect.Report, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM effect_reports
		WHERE user_id = $1 AND user_supplement_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID.UUID(), supplementID.UUID())

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// LatestReportsForUser returns the newest report per supplement for a user
func (r *ReportRepositoryImpl) LatestReportsForUser(ctx context.Context, userID core.UserID) ([]effect.Report, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (user_supplement_id) `+reportColumns+`
		FROM effect_reports
		WHERE user_id = $1
		ORDER BY user_supplement_id, created_at DESC
	`, userID.UUID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

// ReportHistory returns all versions for a pair, newest first
func (r *ReportRepositoryImpl) ReportHistory(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID, limit int) ([]effect.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM effect_reports
		WHERE user_id = $1 AND user_supplement_id = $2
		ORDER BY created_at DESC
	`
	args := []interface{}{userID.UUID(), supplementID.UUID()}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

// EffectSizesByCanonicalName returns other users' latest effect sizes for a
// canonical supplement, implementing CommunityReader
func (r *ReportRepositoryImpl) EffectSizesByCanonicalName(ctx context.Context, canonicalName string, excludeUser core.UserID) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (er.user_id, er.user_supplement_id) er.effect_size
		FROM effect_reports er
		JOIN user_supplements us ON us.id = er.user_supplement_id
		WHERE us.canonical_name = $1 AND er.user_id <> $2
		ORDER BY er.user_id, er.user_supplement_id, er.created_at DESC
	`, canonicalName, excludeUser.UUID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes []float64
	for rows.Next() {
		var size float64
		if err := rows.Scan(&size); err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, rows.Err()
}

func scanReport(row rowScanner) (*effect.Report, error) {
	var (
		id                   string
		userID, supplementID uuid.UUID
		status, metric, dir  string
		effectSize           float64
		absChange, pctChange *float64
		confidence           float64
		sampleOn, sampleOff  int
		excluded             int
		onsetDays            *int
		responderPct         *float64
		responderLabel       *string
		mechanism            string
		rawContextJSON       []byte
		source               string
		createdAt            time.Time
	)
	if err := row.Scan(&id, &userID, &supplementID, &status, &metric, &dir,
		&effectSize, &absChange, &pctChange, &confidence,
		&sampleOn, &sampleOff, &excluded,
		&onsetDays, &responderPct, &responderLabel, &mechanism,
		&rawContextJSON, &source, &createdAt); err != nil {
		return nil, err
	}

	report := &effect.Report{
		ID:                    core.ReportID(id),
		UserID:                core.UserID(userID.String()),
		UserSupplementID:      core.UserSupplementID(supplementID.String()),
		Status:                effect.Status(status),
		PrimaryMetric:         metric,
		Direction:             effect.Direction(dir),
		EffectSize:            effectSize,
		AbsoluteChange:        absChange,
		PercentChange:         pctChange,
		Confidence:            confidence,
		SampleDaysOn:          sampleOn,
		SampleDaysOff:         sampleOff,
		DaysExcludedConfounds: excluded,
		OnsetDays:             onsetDays,
		ResponderPercentile:   responderPct,
		MechanismLabel:        mechanism,
		Source:                effect.AnalysisSource(source),
		CreatedAt:             core.NewTimestamp(createdAt),
	}
	if responderLabel != nil {
		label := effect.ResponderLabel(*responderLabel)
		report.ResponderLabel = &label
	}
	if len(rawContextJSON) > 0 {
		if err := json.Unmarshal(rawContextJSON, &report.RawContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw_context: %w", err)
		}
	}
	return report, nil
}

func scanReports(rows *sql.Rows) ([]effect.Report, error) {
	var reports []effect.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// classifyWriteError maps driver failures onto the domain's transient and
// conflict errors so the caller's retry-once policy can fire
func classifyWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "40": // transaction rollback (serialization, deadlock)
			return fmt.Errorf("%w: %v", core.ErrWriteConflict, err)
		case "08", "53": // connection failures, resource exhaustion
			return fmt.Errorf("%w: %v", core.ErrStoreTransient, err)
		}
	}
	return err
}
