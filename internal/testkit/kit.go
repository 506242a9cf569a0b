package testkit

import (
	"context"

	"supptrace/domain/core"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
	"supptrace/internal"
	"supptrace/internal/cache"
	"supptrace/internal/config"
)

// TestKit wires the in-memory stores together so tests and the dev command
// can exercise the full analysis pipeline without a database.
type TestKit struct {
	Entries     *MemoryEntryStore
	Supplements *MemorySupplementRepo
	Periods     *MemoryPeriodRepo
	Reports     *MemoryReportRepo
	Bus         *cache.InvalidationBus
	Analysis    config.AnalysisConfig
}

// NewTestKit creates a fresh kit with default analysis settings
func NewTestKit() *TestKit {
	supplements := NewMemorySupplementRepo()
	return &TestKit{
		Entries:     NewMemoryEntryStore(),
		Supplements: supplements,
		Periods:     NewMemoryPeriodRepo(supplements),
		Reports:     NewMemoryReportRepo(supplements),
		Bus:         cache.NewInvalidationBus(internal.DefaultLogger),
		Analysis:    config.DefaultAnalysisConfig(),
	}
}

// SeedSupplement creates and stores a supplement in the testing lifecycle
func (t *TestKit) SeedSupplement(userID core.UserID, name, canonicalName string, metric entry.MetricName) *intake.UserSupplement {
	sup := &intake.UserSupplement{
		ID:            core.UserSupplementID(core.NewID()),
		UserID:        userID,
		Name:          name,
		CanonicalName: canonicalName,
		PrimaryMetric: string(metric),
		Lifecycle:     intake.LifecycleTesting,
		CreatedAt:     core.Now(),
	}
	_ = t.Supplements.SaveSupplement(context.Background(), sup)
	return sup
}

// SeedHistory generates a synthetic history and stores the entries and the
// resulting intake period.
func (t *TestKit) SeedHistory(userID core.UserID, supplementID core.UserSupplementID, cfg HistoryConfig) GeneratedHistory {
	history := GenerateHistory(userID, supplementID, cfg)
	for _, e := range history.Entries {
		t.Entries.Upsert(e)
	}
	_ = t.Periods.SavePeriod(context.Background(), &history.Period)
	return history
}
