package window

import (
	"sort"

	"supptrace/domain/core"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
	"supptrace/internal/confound"
)

// DayValue pairs one usable day with its primary-metric value
type DayValue struct {
	Date  core.LocalDate
	Value float64
}

// Sample is the filtered ON/OFF partition the estimator consumes
type Sample struct {
	OnValues  []float64
	OffValues []float64
	// OnSeries keeps the usable ON days in date order for onset estimation
	OnSeries []DayValue

	// ExcludedCount is every in-window tracked day dropped by filtering
	ExcludedCount     int
	NoisyDays         int
	BoundaryExcluded  int
	MissingMetricDays int
	SkippedDoseDays   int
	TotalTrackedDays  int

	// NoiseReasons aggregates the distinct confound flags seen on dropped days
	NoiseReasons []confound.Flag

	// OffAttainable is false when the lookback window holds no day outside
	// an intake period, so no baseline can ever form from this history
	OffAttainable bool
}

// Builder partitions a supplement's history into clean ON and OFF samples
type Builder struct {
	tagger             *confound.Tagger
	boundaryBufferDays int
}

// NewBuilder creates a window builder
func NewBuilder(tagger *confound.Tagger, boundaryBufferDays int) *Builder {
	if boundaryBufferDays < 0 {
		boundaryBufferDays = 0
	}
	return &Builder{tagger: tagger, boundaryBufferDays: boundaryBufferDays}
}

// Build filters the entries against the supplement's periods and the primary
// metric. Days are dropped, in order, when: the dose was explicitly skipped
// inside an ON period, the day is noisy, the day sits within the boundary
// buffer of a period transition, or the primary metric is missing.
func (b *Builder) Build(entries []entry.DailyEntry, periods []intake.Period, supplementID core.UserSupplementID, metric entry.MetricName) Sample {
	sample := Sample{}

	buffered := b.bufferedDays(periods)
	reasonSet := make(map[confound.Flag]bool)

	for i := range entries {
		e := &entries[i]
		day := e.LocalDate
		sample.TotalTrackedDays++

		on := coveredByAny(periods, day)
		if !on {
			sample.OffAttainable = true
		}

		// A flagged skip inside an ON period is neither evidence for nor
		// against the supplement
		if on && e.SupplementIntake[supplementID] == entry.IntakeSkipped {
			sample.SkippedDoseDays++
			sample.ExcludedCount++
			continue
		}

		if b.tagger.IsNoisy(e) {
			sample.NoisyDays++
			sample.ExcludedCount++
			for _, flag := range b.tagger.NoiseReasons(e) {
				reasonSet[flag] = true
			}
			continue
		}

		if buffered[day] {
			sample.BoundaryExcluded++
			sample.ExcludedCount++
			continue
		}

		value := e.Metric(metric)
		if value == nil {
			sample.MissingMetricDays++
			sample.ExcludedCount++
			continue
		}

		if on {
			sample.OnValues = append(sample.OnValues, *value)
			sample.OnSeries = append(sample.OnSeries, DayValue{Date: day, Value: *value})
		} else {
			sample.OffValues = append(sample.OffValues, *value)
		}
	}

	sort.Slice(sample.OnSeries, func(i, j int) bool {
		return sample.OnSeries[i].Date.Before(sample.OnSeries[j].Date)
	})

	for flag := range reasonSet {
		sample.NoiseReasons = append(sample.NoiseReasons, flag)
	}
	sort.Slice(sample.NoiseReasons, func(i, j int) bool {
		return sample.NoiseReasons[i] < sample.NoiseReasons[j]
	})

	return sample
}

// bufferedDays expands each period boundary into the set of washout days
// on both sides of the transition
func (b *Builder) bufferedDays(periods []intake.Period) map[core.LocalDate]bool {
	buffered := make(map[core.LocalDate]bool)
	if b.boundaryBufferDays == 0 {
		return buffered
	}
	for _, p := range periods {
		for _, boundary := range p.Boundaries() {
			for offset := -b.boundaryBufferDays; offset <= b.boundaryBufferDays; offset++ {
				buffered[boundary.AddDays(offset)] = true
			}
		}
	}
	return buffered
}

// ConfoundRatio is the fraction of tracked in-window days lost to noise
func (s Sample) ConfoundRatio() float64 {
	if s.TotalTrackedDays == 0 {
		return 0
	}
	return float64(s.NoisyDays) / float64(s.TotalTrackedDays)
}

func coveredByAny(periods []intake.Period, day core.LocalDate) bool {
	for _, p := range periods {
		if p.Covers(day) {
			return true
		}
	}
	return false
}
