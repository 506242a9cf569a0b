package classifier

import (
	"testing"

	"supptrace/domain/effect"
	"supptrace/domain/entry"
	"supptrace/internal/config"
	"supptrace/internal/estimator"
	"supptrace/internal/scorer"
	"supptrace/internal/window"
)

func inputs(on, off int, size, conf float64) Inputs {
	return Inputs{
		Sample: window.Sample{
			TotalTrackedDays: on + off,
			OffAttainable:    true,
		},
		Estimate: effect.Estimate{
			SampleOn:   on,
			SampleOff:  off,
			EffectSize: size,
			Direction:  directionFor(size),
		},
		Confidence: scorer.Confidence{Score: conf},
	}
}

func directionFor(size float64) effect.Direction {
	switch {
	case size > 0.05:
		return effect.DirectionPositive
	case size < -0.05:
		return effect.DirectionNegative
	}
	return effect.DirectionNeutral
}

// TestClassifyDecisionTable tests the priority-ordered rules
func TestClassifyDecisionTable(t *testing.T) {
	c := NewClassifier(config.DefaultAnalysisConfig())

	tests := []struct {
		name string
		in   Inputs
		want effect.Status
	}{
		{"no on days", inputs(0, 30, 0, 0), effect.StatusTooEarly},
		{"two on days", inputs(2, 30, 0.8, 0.9), effect.StatusTooEarly},
		{"two off days", inputs(30, 2, 0.8, 0.9), effect.StatusTooEarly},
		{"thin but classifiable", inputs(4, 30, 0.8, 0.9), effect.StatusTesting},
		{"clear positive", inputs(30, 30, 0.5, 0.8), effect.StatusSignificantPositive},
		{"clear negative", inputs(30, 30, -0.5, 0.8), effect.StatusSignificantNegative},
		{"flat and confident", inputs(30, 30, 0.01, 0.8), effect.StatusNoDetectableEffect},
		{"flat but short history", inputs(6, 6, 0.01, 0.8), effect.StatusTesting},
		{"material but unconfident", inputs(10, 10, 0.5, 0.3), effect.StatusTesting},
		{"small effect high confidence", inputs(30, 30, 0.08, 0.9), effect.StatusTesting},
	}

	for _, test := range tests {
		if got := c.Classify(test.in); got != test.want {
			t.Errorf("%s: expected %s, got %s", test.name, test.want, got)
		}
	}
}

// TestClassifyConfoundDominance tests that confounding beats any apparent
// effect once classification is possible
func TestClassifyConfoundDominance(t *testing.T) {
	c := NewClassifier(config.DefaultAnalysisConfig())

	// Heavy noise: 40% of tracked days flagged
	in := inputs(30, 30, 0.9, 0.95)
	in.Sample.NoisyDays = 40
	in.Sample.TotalTrackedDays = 100
	if got := c.Classify(in); got != effect.StatusConfounded {
		t.Errorf("High confound ratio should yield confounded, got %s", got)
	}

	// Co-start conflict alone is enough
	in = inputs(30, 30, 0.9, 0.95)
	in.CoStartConflict = true
	if got := c.Classify(in); got != effect.StatusConfounded {
		t.Errorf("Co-start conflict should yield confounded, got %s", got)
	}

	// But never before the sample floor
	in = inputs(2, 30, 0.9, 0.95)
	in.CoStartConflict = true
	if got := c.Classify(in); got != effect.StatusTooEarly {
		t.Errorf("Sample floor should win over confounding, got %s", got)
	}
}

// TestClassifyRatioBoundary tests that the noisy-day limit is inclusive:
// reaching it confounds, a large clean effect notwithstanding
func TestClassifyRatioBoundary(t *testing.T) {
	c := NewClassifier(config.DefaultAnalysisConfig())

	in := inputs(30, 30, 0.9, 0.8)
	in.Sample.NoisyDays = 29
	in.Sample.TotalTrackedDays = 100
	if got := c.Classify(in); got == effect.StatusConfounded {
		t.Error("Ratio below the limit should not confound")
	}

	in.Sample.NoisyDays = 30
	if got := c.Classify(in); got != effect.StatusConfounded {
		t.Errorf("Ratio at the limit should confound, got %s", got)
	}
}

// TestClassifySmallPainShift runs the full estimate-score-classify path on
// a long clean pain history whose ON mean sits a twentieth of a point below
// OFF. The shift has to resolve as no detectable effect with confidence
// clearing the no-effect threshold, not linger in testing.
func TestClassifySmallPainShift(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	spec, err := entry.LookupMetric(entry.MetricPain)
	if err != nil {
		t.Fatalf("Unknown metric: %v", err)
	}

	// 40 ON days around mean 3.0, 40 OFF days around 3.05, unit spread
	sample := window.Sample{OffAttainable: true, TotalTrackedDays: 80}
	for i := 0; i < 20; i++ {
		sample.OnValues = append(sample.OnValues, 2.0, 4.0)
		sample.OffValues = append(sample.OffValues, 2.05, 4.05)
	}

	est := estimator.NewEstimator(cfg.EffectSizeClamp, cfg.DirectionEpsilon).Estimate(sample, spec)
	conf := scorer.NewScorer(cfg.SampleSaturationDays).Score(sample, est)

	if conf.Score < cfg.NoEffectMinConfidence {
		t.Fatalf("Expected confidence of at least %.2f, got %f", cfg.NoEffectMinConfidence, conf.Score)
	}
	got := NewClassifier(cfg).Classify(Inputs{Sample: sample, Estimate: est, Confidence: conf})
	if got != effect.StatusNoDetectableEffect {
		t.Errorf("Expected no detectable effect, got %s (effect size %f)", got, est.EffectSize)
	}
}

// TestClassifyInconclusive tests the always-on carve-out: a long history
// with no attainable baseline is unanswerable, not early
func TestClassifyInconclusive(t *testing.T) {
	c := NewClassifier(config.DefaultAnalysisConfig())

	in := inputs(70, 0, 0, 0)
	in.Sample.OffAttainable = false
	in.Sample.TotalTrackedDays = 70
	if got := c.Classify(in); got != effect.StatusInconclusive {
		t.Errorf("Long always-on history should be inconclusive, got %s", got)
	}

	// Same shape but short history is still too early
	in = inputs(20, 0, 0, 0)
	in.Sample.OffAttainable = false
	in.Sample.TotalTrackedDays = 20
	if got := c.Classify(in); got != effect.StatusTooEarly {
		t.Errorf("Short always-on history should be too early, got %s", got)
	}
}

// TestShouldRevealVerdict tests the confirmatory gate
func TestShouldRevealVerdict(t *testing.T) {
	explicit := &effect.Report{Source: effect.SourceExplicitTest}
	if !ShouldRevealVerdict(explicit, 0) {
		t.Error("Explicit tests reveal immediately")
	}

	implicit := &effect.Report{Source: effect.SourceImplicit, Confidence: 0.3, SampleDaysOn: 10, SampleDaysOff: 10}
	if ShouldRevealVerdict(implicit, 2) {
		t.Error("Low-confidence implicit verdicts need three check-ins")
	}
	if !ShouldRevealVerdict(implicit, 3) {
		t.Error("Three check-ins should reveal an implicit verdict")
	}

	strong := &effect.Report{Source: effect.SourceImplicit, Confidence: 0.8, SampleDaysOn: 35, SampleDaysOff: 32}
	if ShouldRevealVerdict(strong, 0) {
		t.Error("Even strong implicit verdicts wait for one check-in")
	}
	if !ShouldRevealVerdict(strong, 1) {
		t.Error("Strong implicit verdicts reveal after one check-in")
	}
}
