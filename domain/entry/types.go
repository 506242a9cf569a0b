package entry

import (
	"supptrace/domain/core"
)

// IntakeStatus records whether a supplement dose was taken on a given day
type IntakeStatus string

const (
	IntakeTaken   IntakeStatus = "taken"
	IntakeSkipped IntakeStatus = "skipped"
)

// DailyEntry is one check-in row: a single user's metrics for a single calendar day.
// Entries are upserted on (user, date) and never hard-deleted.
type DailyEntry struct {
	UserID    core.UserID
	LocalDate core.LocalDate

	// Metric values, nil when the user did not record them that day
	Pain         *float64
	Mood         *float64
	SleepQuality *float64
	Energy       *float64
	Focus        *float64

	// Free-form context markers (illness, travel, alcohol, ...)
	Tags []string

	// Per-supplement intake flags for the day
	SupplementIntake map[core.UserSupplementID]IntakeStatus

	CreatedAt core.Timestamp
	UpdatedAt core.Timestamp
}

// Metric returns the value for a named metric, nil when missing or unknown
func (e *DailyEntry) Metric(name MetricName) *float64 {
	switch name {
	case MetricPain:
		return e.Pain
	case MetricMood:
		return e.Mood
	case MetricSleepQuality:
		return e.SleepQuality
	case MetricEnergy:
		return e.Energy
	case MetricFocus:
		return e.Focus
	}
	return nil
}

// HasTag reports whether the entry carries the given tag
func (e *DailyEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TookSupplement reports whether the entry flags the supplement as taken
func (e *DailyEntry) TookSupplement(id core.UserSupplementID) bool {
	return e.SupplementIntake[id] == IntakeTaken
}
