package intake

import (
	"supptrace/domain/core"
)

// Period is one "on" interval for a user supplement. An open period
// (End == nil) means the user is currently taking the supplement.
// Periods for the same supplement must never overlap.
type Period struct {
	ID           core.PeriodID
	SupplementID core.UserSupplementID
	Start        core.LocalDate
	End          *core.LocalDate
	CreatedAt    core.Timestamp
}

// IsOpen reports whether the period has no recorded stop date
func (p Period) IsOpen() bool {
	return p.End == nil
}

// Covers reports whether the day falls inside the period.
// Open periods cover every day from Start onward.
func (p Period) Covers(d core.LocalDate) bool {
	if d.Before(p.Start) {
		return false
	}
	if p.End == nil {
		return true
	}
	return !d.After(*p.End)
}

// Overlaps reports whether two intervals intersect. Open intervals
// extend to infinity on the right.
func (p Period) Overlaps(other Period) bool {
	// p entirely before other
	if p.End != nil && p.End.Before(other.Start) {
		return false
	}
	// other entirely before p
	if other.End != nil && other.End.Before(p.Start) {
		return false
	}
	return true
}

// Boundaries returns the transition days of the period: the start day,
// and the stop day when closed.
func (p Period) Boundaries() []core.LocalDate {
	if p.End == nil {
		return []core.LocalDate{p.Start}
	}
	return []core.LocalDate{p.Start, *p.End}
}

// Lifecycle tracks where a user supplement sits in its self-experiment.
// The transition out of testing is one-way; regeneration never reverts it.
type Lifecycle string

const (
	LifecycleTesting      Lifecycle = "testing"
	LifecycleComplete     Lifecycle = "complete"
	LifecycleInconclusive Lifecycle = "inconclusive"
)

// IsTerminal reports whether the lifecycle has left the testing state
func (l Lifecycle) IsTerminal() bool {
	return l == LifecycleComplete || l == LifecycleInconclusive
}

// UserSupplement is the per-user record of a tracked supplement
type UserSupplement struct {
	ID     core.UserSupplementID
	UserID core.UserID
	Name   string
	// CanonicalName groups the same supplement across users for the
	// community percentile lookup
	CanonicalName string
	// PrimaryMetric is the metric the user is testing this supplement against
	PrimaryMetric string
	// MechanismNote is an optional markdown note on the supposed mechanism
	MechanismNote string
	Lifecycle     Lifecycle
	CreatedAt     core.Timestamp
}
