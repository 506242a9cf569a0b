package testkit

import (
	"math/rand"
	"time"

	"supptrace/domain/core"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
)

// HistoryConfig drives synthetic check-in generation. The generator lays out
// an OFF block followed by an ON block ending at End, so window building sees
// a realistic before/after history with a single intake period.
type HistoryConfig struct {
	Seed       int64
	Metric     entry.MetricName
	End        core.LocalDate
	OffDays    int
	OnDays     int
	OffMean    float64
	OnMean     float64
	Sigma      float64
	NoisyEvery int      // every Nth day carries a confound tag, 0 disables
	NoisyTags  []string // tags applied on noisy days, defaults to illness
	SkipEvery  int      // every Nth ON day is logged as a skipped dose, 0 disables
	GapEvery   int      // every Nth day has no metric value, 0 disables
}

// GeneratedHistory bundles the entries and the single intake period the
// generator produced, ready to seed into memory stores.
type GeneratedHistory struct {
	Entries []entry.DailyEntry
	Period  intake.Period
}

// GenerateHistory builds a deterministic synthetic history for one user and
// one supplement. The same config always yields the same values.
func GenerateHistory(userID core.UserID, supplementID core.UserSupplementID, cfg HistoryConfig) GeneratedHistory {
	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Metric == "" {
		cfg.Metric = entry.MetricMood
	}
	noisyTags := cfg.NoisyTags
	if len(noisyTags) == 0 {
		noisyTags = []string{"illness"}
	}

	total := cfg.OffDays + cfg.OnDays
	start := cfg.End.AddDays(-(total - 1))
	onStart := cfg.End.AddDays(-(cfg.OnDays - 1))

	var entries []entry.DailyEntry
	day := start
	for i := 0; i < total; i++ {
		on := i >= cfg.OffDays
		mean := cfg.OffMean
		if on {
			mean = cfg.OnMean
		}
		value := clampScale(mean + rng.NormFloat64()*cfg.Sigma)

		e := entry.DailyEntry{
			UserID:           userID,
			LocalDate:        day,
			Tags:             nil,
			SupplementIntake: make(map[core.UserSupplementID]entry.IntakeStatus),
			CreatedAt:        core.NewTimestamp(day.Time().Add(20 * time.Hour)),
			UpdatedAt:        core.NewTimestamp(day.Time().Add(20 * time.Hour)),
		}
		if cfg.NoisyEvery > 0 && (i+1)%cfg.NoisyEvery == 0 {
			e.Tags = append(e.Tags, noisyTags...)
		}
		if cfg.GapEvery == 0 || (i+1)%cfg.GapEvery != 0 {
			setMetric(&e, cfg.Metric, value)
		}
		if on {
			status := entry.IntakeTaken
			onIndex := i - cfg.OffDays
			if cfg.SkipEvery > 0 && (onIndex+1)%cfg.SkipEvery == 0 {
				status = entry.IntakeSkipped
			}
			e.SupplementIntake[supplementID] = status
		}

		entries = append(entries, e)
		day = day.AddDays(1)
	}

	period := intake.Period{
		ID:           core.PeriodID(core.NewID()),
		SupplementID: supplementID,
		Start:        onStart,
		CreatedAt:    core.Now(),
	}
	return GeneratedHistory{Entries: entries, Period: period}
}

func setMetric(e *entry.DailyEntry, name entry.MetricName, value float64) {
	v := value
	switch name {
	case entry.MetricPain:
		e.Pain = &v
	case entry.MetricMood:
		e.Mood = &v
	case entry.MetricSleepQuality:
		e.SleepQuality = &v
	case entry.MetricEnergy:
		e.Energy = &v
	case entry.MetricFocus:
		e.Focus = &v
	}
}

func clampScale(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
