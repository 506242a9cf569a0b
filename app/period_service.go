package app

import (
	"context"
	"fmt"

	"supptrace/domain/core"
	"supptrace/domain/intake"
	"supptrace/internal"
	"supptrace/internal/cache"
	"supptrace/ports"
)

// PeriodService owns the intake period tracker: the ordered set of
// {start, end|null} "on" intervals per supplement. Gaps are "off" periods.
type PeriodService struct {
	periods     ports.PeriodRepository
	supplements ports.SupplementRepository
	bus         *cache.InvalidationBus
	log         *internal.Logger
}

// NewPeriodService creates a period service
func NewPeriodService(periods ports.PeriodRepository, supplements ports.SupplementRepository, bus *cache.InvalidationBus, log *internal.Logger) *PeriodService {
	return &PeriodService{periods: periods, supplements: supplements, bus: bus, log: log}
}

// AddPeriod records a new "on" interval. Rejected before any write when the
// dates are malformed or the interval intersects an existing period.
func (s *PeriodService) AddPeriod(ctx context.Context, supplementID core.UserSupplementID, start core.LocalDate, end *core.LocalDate) (core.PeriodID, error) {
	if start.IsZero() {
		return "", core.NewValidationError("start_date", "start date is required")
	}
	if end != nil && end.Before(start) {
		return "", core.NewValidationError("end_date", fmt.Sprintf("end %s before start %s", end, start))
	}

	sup, err := s.supplements.GetSupplement(ctx, supplementID)
	if err != nil {
		return "", err
	}

	existing, err := s.periods.GetPeriods(ctx, supplementID)
	if err != nil {
		return "", err
	}

	candidate := intake.Period{
		ID:           core.PeriodID(core.NewID()),
		SupplementID: supplementID,
		Start:        start,
		End:          end,
		CreatedAt:    core.Now(),
	}
	for _, p := range existing {
		if candidate.Overlaps(p) {
			endStr := "open"
			if end != nil {
				endStr = end.String()
			}
			return "", core.NewOverlapError(start.String(), endStr)
		}
	}

	if err := s.periods.SavePeriod(ctx, &candidate); err != nil {
		return "", err
	}

	s.invalidate(sup.UserID, supplementID)
	s.log.Info("period %s added for supplement %s (%s..%v)", candidate.ID, supplementID, start, end)
	return candidate.ID, nil
}

// ClosePeriod sets the stop date on an open period
func (s *PeriodService) ClosePeriod(ctx context.Context, periodID core.PeriodID, end core.LocalDate) error {
	p, err := s.periods.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if p == nil {
		return core.ErrPeriodNotFound
	}
	if p.End != nil {
		return core.ErrPeriodAlreadyClosed
	}
	if end.Before(p.Start) {
		return core.NewValidationError("end_date", fmt.Sprintf("end %s before period start %s", end, p.Start))
	}

	if err := s.periods.ClosePeriod(ctx, periodID, end); err != nil {
		return err
	}

	if sup, err := s.supplements.GetSupplement(ctx, p.SupplementID); err == nil {
		s.invalidate(sup.UserID, p.SupplementID)
	}
	s.log.Info("period %s closed at %s", periodID, end)
	return nil
}

// OnDays returns the days inside the range covered by any intake period
func (s *PeriodService) OnDays(ctx context.Context, supplementID core.UserSupplementID, dateRange core.DateRange) ([]core.LocalDate, error) {
	periods, err := s.periods.GetPeriods(ctx, supplementID)
	if err != nil {
		return nil, err
	}
	var days []core.LocalDate
	dateRange.Each(func(d core.LocalDate) {
		for _, p := range periods {
			if p.Covers(d) {
				days = append(days, d)
				return
			}
		}
	})
	return days, nil
}

// OffDays returns the complementary day set over the same range
func (s *PeriodService) OffDays(ctx context.Context, supplementID core.UserSupplementID, dateRange core.DateRange) ([]core.LocalDate, error) {
	periods, err := s.periods.GetPeriods(ctx, supplementID)
	if err != nil {
		return nil, err
	}
	var days []core.LocalDate
	dateRange.Each(func(d core.LocalDate) {
		for _, p := range periods {
			if p.Covers(d) {
				return
			}
		}
		days = append(days, d)
	})
	return days, nil
}

// invalidate drops any cached report derived from the supplement.
// Opening or closing a period always changes the ON/OFF partition.
func (s *PeriodService) invalidate(userID core.UserID, supplementID core.UserSupplementID) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(cache.Invalidation{
		UserID:       userID,
		SupplementID: supplementID,
		Reason:       cache.ReasonPeriodChanged,
	})
}
