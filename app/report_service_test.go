package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supptrace/domain/core"
	"supptrace/domain/effect"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
	"supptrace/internal"
	"supptrace/internal/cache"
	"supptrace/internal/community"
	"supptrace/internal/testkit"
)

type reportFixture struct {
	kit     *testkit.TestKit
	reports *ReportService
	periods *PeriodService
	userID  core.UserID
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	kit := testkit.NewTestKit()
	logger := internal.DefaultLogger
	enricher := community.NewEnricher(kit.Reports, kit.Analysis.CommunityMinPopulation, logger)
	return &reportFixture{
		kit: kit,
		reports: NewReportService(
			kit.Analysis, kit.Entries, kit.Periods, kit.Supplements, kit.Reports,
			enricher, kit.Bus, logger,
		),
		periods: NewPeriodService(kit.Periods, kit.Supplements, kit.Bus, logger),
		userID:  core.UserID(core.NewID()),
	}
}

// seedAlternating writes a history ending today: offDays baseline days then
// onDays supplement days, with the metric alternating around the given means.
// noisyEvery tags every Nth day as sick when positive.
func (f *reportFixture) seedAlternating(t *testing.T, sup *intake.UserSupplement, metric entry.MetricName, offDays, onDays int, offMean, onMean float64, noisyEvery int) {
	t.Helper()
	total := offDays + onDays
	today := core.DateOf(core.Now().Time())
	start := today.AddDays(-(total - 1))

	for i := 0; i < total; i++ {
		day := start.AddDays(i)
		mean := offMean
		on := i >= offDays
		if on {
			mean = onMean
		}
		value := mean - 0.2
		if i%2 == 1 {
			value = mean + 0.2
		}

		// Merge into any entry an earlier seed left on the same day so
		// multi-supplement histories coexist
		e, ok := f.kit.Entries.Get(f.userID, day)
		if !ok {
			e = entry.DailyEntry{
				UserID:           f.userID,
				LocalDate:        day,
				SupplementIntake: map[core.UserSupplementID]entry.IntakeStatus{},
				CreatedAt:        core.NewTimestamp(day.Time().Add(20 * time.Hour)),
			}
		}
		if e.SupplementIntake == nil {
			e.SupplementIntake = map[core.UserSupplementID]entry.IntakeStatus{}
		}
		if noisyEvery > 0 && i%noisyEvery == 0 {
			e.Tags = append(e.Tags, "sick")
		}
		setMetricValue(&e, metric, value)
		if on {
			e.SupplementIntake[sup.ID] = entry.IntakeTaken
		}
		f.kit.Entries.Upsert(e)
	}

	period := &intake.Period{
		ID:           core.PeriodID(core.NewID()),
		SupplementID: sup.ID,
		Start:        start.AddDays(offDays),
		CreatedAt:    core.Now(),
	}
	require.NoError(t, f.kit.Periods.SavePeriod(context.Background(), period))
}

func setMetricValue(e *entry.DailyEntry, metric entry.MetricName, v float64) {
	value := v
	switch metric {
	case entry.MetricPain:
		e.Pain = &value
	case entry.MetricMood:
		e.Mood = &value
	case entry.MetricSleepQuality:
		e.SleepQuality = &value
	case entry.MetricEnergy:
		e.Energy = &value
	case entry.MetricFocus:
		e.Focus = &value
	}
}

// TestGenerateNullEffect runs a long flat history: identical distributions
// ON and OFF must produce a confident no-effect verdict and close the
// supplement's lifecycle as inconclusive
func TestGenerateNullEffect(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Ashwagandha", "ashwagandha", entry.MetricMood)
	f.seedAlternating(t, sup, entry.MetricMood, 45, 45, 6.0, 6.0, 0)

	report, err := f.reports.Generate(context.Background(), f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)

	assert.Equal(t, effect.StatusNoDetectableEffect, report.Status)
	assert.Equal(t, effect.DirectionNeutral, report.Direction)
	assert.GreaterOrEqual(t, report.Confidence, 0.65)
	assert.Zero(t, report.RawContext.ConfoundRatio)
	require.NotNil(t, report.RawContext.WelchP)

	stored, err := f.kit.Supplements.GetSupplement(context.Background(), sup.ID)
	require.NoError(t, err)
	assert.Equal(t, intake.LifecycleInconclusive, stored.Lifecycle)
}

// TestGenerateClearPositiveEffect runs a history with a large clean shift
// and expects a significant positive verdict with onset estimation
func TestGenerateClearPositiveEffect(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)

	report, err := f.reports.Generate(context.Background(), f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)

	assert.Equal(t, effect.StatusSignificantPositive, report.Status)
	assert.Equal(t, effect.DirectionPositive, report.Direction)
	assert.GreaterOrEqual(t, report.EffectSize, 0.15)
	assert.GreaterOrEqual(t, report.Confidence, 0.5)
	assert.NotNil(t, report.OnsetDays)

	stored, err := f.kit.Supplements.GetSupplement(context.Background(), sup.ID)
	require.NoError(t, err)
	assert.Equal(t, intake.LifecycleComplete, stored.Lifecycle)
}

// TestGenerateConfounded runs a strong apparent effect drowned in noisy
// days: confounding must dominate the verdict
func TestGenerateConfounded(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Turmeric", "turmeric", entry.MetricMood)
	// Every third day flagged: ratio 1/3 exceeds the 30% limit
	f.seedAlternating(t, sup, entry.MetricMood, 30, 30, 5.0, 7.0, 3)

	report, err := f.reports.Generate(context.Background(), f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)

	assert.Equal(t, effect.StatusConfounded, report.Status)
	assert.Greater(t, report.RawContext.ConfoundRatio, 0.30)
	assert.NotEmpty(t, report.RawContext.NoiseReasons)

	stored, err := f.kit.Supplements.GetSupplement(context.Background(), sup.ID)
	require.NoError(t, err)
	assert.Equal(t, intake.LifecycleTesting, stored.Lifecycle, "confounded is not terminal")
}

// TestGenerateTooEarly runs a brand-new supplement: two ON days cannot
// classify, whatever the apparent shift
func TestGenerateTooEarly(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Creatine", "creatine", entry.MetricEnergy)
	f.seedAlternating(t, sup, entry.MetricEnergy, 12, 2, 5.0, 8.0, 0)

	report, err := f.reports.Generate(context.Background(), f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)

	assert.Equal(t, effect.StatusTooEarly, report.Status)
}

// TestGenerateCoStartConflict verifies that another supplement starting
// within the attribution buffer forces confounded
func TestGenerateCoStartConflict(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)

	// A second supplement starts three days after the target
	other := f.kit.SeedSupplement(f.userID, "Zinc", "zinc", entry.MetricMood)
	today := core.DateOf(core.Now().Time())
	require.NoError(t, f.kit.Periods.SavePeriod(context.Background(), &intake.Period{
		ID:           core.PeriodID(core.NewID()),
		SupplementID: other.ID,
		Start:        today.AddDays(-31),
		CreatedAt:    core.Now(),
	}))

	report, err := f.reports.Generate(context.Background(), f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)

	assert.Equal(t, effect.StatusConfounded, report.Status)
	assert.True(t, report.RawContext.CoStartConflict)
}

// TestGenerateCacheIdempotence verifies non-forced calls serve the stored
// report and forced calls recompute deterministically
func TestGenerateCacheIdempotence(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)
	ctx := context.Background()

	first, err := f.reports.Generate(ctx, f.userID, sup.ID, false, effect.SourceImplicit)
	require.NoError(t, err)

	second, err := f.reports.Generate(ctx, f.userID, sup.ID, false, effect.SourceImplicit)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "unchanged inputs must serve the stored report")
	assert.Equal(t, first.EffectSize, second.EffectSize)

	forced, err := f.reports.Generate(ctx, f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, forced.ID, "force must persist a new version")
	assert.Equal(t, first.Status, forced.Status)
	assert.InDelta(t, first.EffectSize, forced.EffectSize, 1e-9)
}

// TestGeneratePeriodChangeInvalidates verifies a period mutation marks the
// pair dirty so the next non-forced call recomputes
func TestGeneratePeriodChangeInvalidates(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)
	ctx := context.Background()

	first, err := f.reports.Generate(ctx, f.userID, sup.ID, false, effect.SourceImplicit)
	require.NoError(t, err)

	f.kit.Bus.Publish(cache.Invalidation{
		UserID:       f.userID,
		SupplementID: sup.ID,
		Reason:       cache.ReasonPeriodChanged,
	})

	require.Eventually(t, func() bool {
		report, err := f.reports.Generate(ctx, f.userID, sup.ID, false, effect.SourceImplicit)
		return err == nil && report.ID != first.ID
	}, 2*time.Second, 10*time.Millisecond, "dirty pair should recompute on the next read")
}

// TestGenerateTransientRetry verifies one transient write failure is
// absorbed by the retry
func TestGenerateTransientRetry(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)
	ctx := context.Background()

	f.kit.Reports.FailNextSaves = 1
	report, err := f.reports.Generate(ctx, f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)

	stored, err := f.kit.Reports.LatestReport(ctx, f.userID, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, stored.ID)
}

// TestGenerateStaleFallback verifies a persistent write failure serves the
// previously stored report instead of failing hard
func TestGenerateStaleFallback(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)
	ctx := context.Background()

	first, err := f.reports.Generate(ctx, f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)

	f.kit.Reports.FailNextSaves = 2
	fallback, err := f.reports.Generate(ctx, f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)
	assert.Equal(t, first.ID, fallback.ID, "stale-but-available beats failing hard")
}

// TestGenerateWrongUser verifies a user cannot read another user's
// supplement
func TestGenerateWrongUser(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)

	_, err := f.reports.Generate(context.Background(), core.UserID(core.NewID()), sup.ID, true, effect.SourceExplicitTest)
	assert.True(t, core.IsNotFoundError(err))
}

// TestPatternsBucketsAndDedup verifies the dashboard view groups and
// dedupes by supplement name
func TestPatternsBucketsAndDedup(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	working := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, working, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)

	early := f.kit.SeedSupplement(f.userID, "Creatine", "creatine", entry.MetricEnergy)
	f.seedAlternating(t, early, entry.MetricEnergy, 12, 2, 5.0, 5.5, 0)

	// Duplicate entry for the same supplement name, never dosed
	dup := f.kit.SeedSupplement(f.userID, "magnesium", "magnesium", entry.MetricSleepQuality)
	_ = dup

	summaries, err := f.reports.Patterns(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, summaries, 2, "duplicate names collapse to one row")

	byName := make(map[string]effect.Summary)
	for _, s := range summaries {
		byName[s.SupplementName] = s
	}

	mag, ok := byName["Magnesium"]
	require.True(t, ok, "the higher-confidence duplicate wins")
	assert.Equal(t, effect.BucketWorking, mag.Bucket)

	cre := byName["Creatine"]
	assert.Equal(t, effect.BucketStillTesting, cre.Bucket)
	assert.Equal(t, effect.StatusTooEarly, cre.Status)
}

// TestPatternsRevealGate verifies implicit verdicts stay hidden until
// enough post-generation check-ins arrive
func TestPatternsRevealGate(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)

	summaries, err := f.reports.Patterns(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.False(t, summaries[0].Revealed, "no check-ins since generation")
}

// TestCommunityEnrichment verifies percentile placement appears above the
// minimum cohort and is absent below it
func TestCommunityEnrichment(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	seedCohort := func(n int, canonical string) {
		for i := 0; i < n; i++ {
			peer := core.UserID(core.NewID())
			peerSup := f.kit.SeedSupplement(peer, fmt.Sprintf("Peer %d", i), canonical, entry.MetricSleepQuality)
			require.NoError(t, f.kit.Reports.SaveReport(ctx, &effect.Report{
				ID:               core.ReportID(core.NewID()),
				UserID:           peer,
				UserSupplementID: peerSup.ID,
				Status:           effect.StatusSignificantPositive,
				EffectSize:       float64(i%10) / 10.0,
				CreatedAt:        core.Now(),
			}))
		}
	}

	seedCohort(25, "magnesium")
	seedCohort(5, "zinc")

	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)

	report, err := f.reports.Generate(ctx, f.userID, sup.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)
	require.NotNil(t, report.ResponderPercentile, "cohort of 25 should place the user")
	require.NotNil(t, report.ResponderLabel)

	small := f.kit.SeedSupplement(f.userID, "Zinc", "zinc", entry.MetricSleepQuality)
	f.seedAlternating(t, small, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)

	smallReport, err := f.reports.Generate(ctx, f.userID, small.ID, true, effect.SourceExplicitTest)
	require.NoError(t, err)
	assert.Nil(t, smallReport.ResponderPercentile, "cohort of 5 fails soft")
}

// TestReportHistory verifies every generation persists a new version
func TestReportHistory(t *testing.T) {
	f := newReportFixture(t)
	sup := f.kit.SeedSupplement(f.userID, "Magnesium", "magnesium", entry.MetricSleepQuality)
	f.seedAlternating(t, sup, entry.MetricSleepQuality, 30, 35, 5.0, 6.5, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.reports.Generate(ctx, f.userID, sup.ID, true, effect.SourceExplicitTest)
		require.NoError(t, err)
	}

	history, err := f.reports.History(ctx, f.userID, sup.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}
