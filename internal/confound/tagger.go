package confound

import (
	"sort"

	"supptrace/domain/core"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
)

// Flag identifies one confound class
type Flag string

const (
	FlagIllness         Flag = "illness"
	FlagTravel          Flag = "travel"
	FlagAlcohol         Flag = "alcohol"
	FlagHighStress      Flag = "high_stress"
	FlagPoorSleep       Flag = "poor_sleep"
	FlagIntenseExercise Flag = "intense_exercise"
	FlagNewSupplement   Flag = "new_supplement"
)

// tagFlags maps raw entry tags to confound flags. Check-in tags arrive
// free-form, so common aliases resolve to the same flag.
var tagFlags = map[string]Flag{
	"illness":          FlagIllness,
	"sick":             FlagIllness,
	"travel":           FlagTravel,
	"travelling":       FlagTravel,
	"alcohol":          FlagAlcohol,
	"drinking":         FlagAlcohol,
	"high_stress":      FlagHighStress,
	"stressed":         FlagHighStress,
	"poor_sleep":       FlagPoorSleep,
	"bad_sleep":        FlagPoorSleep,
	"intense_exercise": FlagIntenseExercise,
	"hard_workout":     FlagIntenseExercise,
	"new_supplement":   FlagNewSupplement,
}

// Tagger classifies days as clean or noisy. Stateless and deterministic.
type Tagger struct{}

// NewTagger creates a new confound tagger
func NewTagger() *Tagger {
	return &Tagger{}
}

// IsNoisy reports whether any confound flag applies to the entry
func (t *Tagger) IsNoisy(e *entry.DailyEntry) bool {
	for _, tag := range e.Tags {
		if _, ok := tagFlags[tag]; ok {
			return true
		}
	}
	return false
}

// NoiseReasons returns the distinct confound flags present on the entry,
// sorted for deterministic output
func (t *Tagger) NoiseReasons(e *entry.DailyEntry) []Flag {
	seen := make(map[Flag]bool)
	for _, tag := range e.Tags {
		if flag, ok := tagFlags[tag]; ok {
			seen[flag] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	reasons := make([]Flag, 0, len(seen))
	for flag := range seen {
		reasons = append(reasons, flag)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

// AdjacencyReport describes ambiguous-attribution confounding: another
// supplement changing state too close to the target's boundaries makes it
// impossible to attribute a metric shift to the target alone.
type AdjacencyReport struct {
	// CoStartConflict is true when any other supplement starts or stops
	// within the buffer of a target period boundary
	CoStartConflict bool
	// ConflictingDays are the target-boundary-adjacent days involved
	ConflictingDays []core.LocalDate
}

// DetectAdjacency compares the target supplement's period boundaries against
// every other supplement's boundaries within bufferDays. Only target
// boundaries inside the analysis window count; a co-start that predates the
// lookback cannot taint days it no longer overlaps. Deterministic, no state.
func (t *Tagger) DetectAdjacency(target []intake.Period, others []intake.Period, bufferDays int, window core.DateRange) AdjacencyReport {
	report := AdjacencyReport{}
	if bufferDays < 0 {
		bufferDays = 0
	}

	for _, tp := range target {
		for _, tb := range tp.Boundaries() {
			if !window.Contains(tb) {
				continue
			}
			for _, op := range others {
				if op.SupplementID == tp.SupplementID {
					continue
				}
				for _, ob := range op.Boundaries() {
					dist := tb.DaysUntil(ob)
					if dist < 0 {
						dist = -dist
					}
					if dist <= bufferDays {
						report.CoStartConflict = true
						report.ConflictingDays = append(report.ConflictingDays, tb)
					}
				}
			}
		}
	}
	return report
}

// KnownFlags returns every confound flag the tagger can emit
func KnownFlags() []Flag {
	return []Flag{
		FlagIllness, FlagTravel, FlagAlcohol, FlagHighStress,
		FlagPoorSleep, FlagIntenseExercise, FlagNewSupplement,
	}
}
