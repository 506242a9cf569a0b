package ports

import (
	"context"

	"supptrace/domain/core"
	"supptrace/domain/effect"
)

// ReportRepository defines the interface for effect report persistence.
// Reports are versioned: saves insert-and-supersede, reads return the
// newest row for the pair.
type ReportRepository interface {
	// SaveReport inserts a new report version
	SaveReport(ctx context.Context, report *effect.Report) error

	// LatestReport returns the authoritative (newest) report for the pair,
	// core.ErrReportNotFound when none exists yet
	LatestReport(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID) (*effect.Report, error)

	// LatestReportsForUser returns the newest report per supplement for a user
	LatestReportsForUser(ctx context.Context, userID core.UserID) ([]effect.Report, error)

	// ReportHistory returns all versions for a pair, newest first
	ReportHistory(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID, limit int) ([]effect.Report, error)
}

// CommunityReader exposes the anonymized cross-user effect distribution
type CommunityReader interface {
	// EffectSizesByCanonicalName returns other users' latest effect sizes for
	// the same canonical supplement, excluding the requesting user
	EffectSizesByCanonicalName(ctx context.Context, canonicalName string, excludeUser core.UserID) ([]float64, error)
}
