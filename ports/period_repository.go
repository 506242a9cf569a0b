package ports

import (
	"context"

	"supptrace/domain/core"
	"supptrace/domain/intake"
)

// PeriodRepository defines the interface for intake period storage
type PeriodRepository interface {
	// GetPeriods returns all periods for a supplement, ascending by start date
	GetPeriods(ctx context.Context, supplementID core.UserSupplementID) ([]intake.Period, error)

	// GetPeriod retrieves a single period by id
	GetPeriod(ctx context.Context, periodID core.PeriodID) (*intake.Period, error)

	// SavePeriod persists a new period
	SavePeriod(ctx context.Context, period *intake.Period) error

	// ClosePeriod sets the end date on an open period
	ClosePeriod(ctx context.Context, periodID core.PeriodID, end core.LocalDate) error

	// GetUserPeriods returns all periods across a user's supplements,
	// used for adjacency confound detection
	GetUserPeriods(ctx context.Context, userID core.UserID) ([]intake.Period, error)
}

// SupplementRepository defines the interface for user supplement records
type SupplementRepository interface {
	// GetSupplement retrieves a user supplement by id
	GetSupplement(ctx context.Context, id core.UserSupplementID) (*intake.UserSupplement, error)

	// ListUserSupplements returns all supplements tracked by a user
	ListUserSupplements(ctx context.Context, userID core.UserID) ([]intake.UserSupplement, error)

	// SaveSupplement persists a supplement record (upsert on id)
	SaveSupplement(ctx context.Context, s *intake.UserSupplement) error

	// TransitionLifecycle moves a supplement out of the testing state.
	// The transition is one-way; implementations must refuse to revert
	// a terminal lifecycle back to testing.
	TransitionLifecycle(ctx context.Context, id core.UserSupplementID, to intake.Lifecycle) error
}
