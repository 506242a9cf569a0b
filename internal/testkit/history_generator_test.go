package testkit

import (
	"testing"

	"supptrace/domain/core"
	"supptrace/domain/entry"
)

// TestGenerateHistoryDeterministic tests that the same config always
// yields the same values
func TestGenerateHistoryDeterministic(t *testing.T) {
	userID := core.UserID("user-1")
	supID := core.UserSupplementID("sup-1")
	end, err := core.ParseLocalDate("2026-07-01")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}

	cfg := HistoryConfig{
		Seed: 42, Metric: entry.MetricMood, End: end,
		OffDays: 10, OnDays: 10, OffMean: 5.0, OnMean: 6.0, Sigma: 0.5,
	}

	a := GenerateHistory(userID, supID, cfg)
	b := GenerateHistory(userID, supID, cfg)

	if len(a.Entries) != 20 || len(b.Entries) != 20 {
		t.Fatalf("Expected 20 entries each, got %d and %d", len(a.Entries), len(b.Entries))
	}
	for i := range a.Entries {
		av, bv := a.Entries[i].Mood, b.Entries[i].Mood
		if av == nil || bv == nil || *av != *bv {
			t.Fatalf("Entry %d values differ: %v vs %v", i, av, bv)
		}
	}
}

// TestGenerateHistoryShape tests the OFF-then-ON layout and the period
func TestGenerateHistoryShape(t *testing.T) {
	userID := core.UserID("user-1")
	supID := core.UserSupplementID("sup-1")
	end, err := core.ParseLocalDate("2026-07-01")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}

	h := GenerateHistory(userID, supID, HistoryConfig{
		Seed: 7, Metric: entry.MetricEnergy, End: end,
		OffDays: 5, OnDays: 3, OffMean: 5.0, OnMean: 6.0, Sigma: 0.1,
		NoisyEvery: 4, SkipEvery: 3,
	})

	if got := h.Entries[len(h.Entries)-1].LocalDate; !got.Equal(end) {
		t.Errorf("History should end at %s, got %s", end, got)
	}
	if !h.Period.Start.Equal(end.AddDays(-2)) {
		t.Errorf("Period should start at the first ON day, got %s", h.Period.Start)
	}
	if !h.Period.IsOpen() {
		t.Error("Generated period should stay open")
	}

	for i, e := range h.Entries {
		_, tracked := e.SupplementIntake[supID]
		if i < 5 && tracked {
			t.Errorf("OFF day %d should not record intake", i)
		}
		if i >= 5 && !tracked {
			t.Errorf("ON day %d should record intake", i)
		}
	}
}
