package classifier

import (
	"math"

	"supptrace/domain/effect"
	"supptrace/internal/config"
	"supptrace/internal/scorer"
	"supptrace/internal/window"
)

// Inputs bundles everything the decision table looks at
type Inputs struct {
	Sample     window.Sample
	Estimate   effect.Estimate
	Confidence scorer.Confidence
	// CoStartConflict is the adjacency confound signal from the tagger
	CoStartConflict bool
}

// Classifier maps an estimate to a categorical status. Deterministic
// decision table, evaluated in priority order, first match wins.
type Classifier struct {
	cfg config.AnalysisConfig
}

// NewClassifier creates a status classifier
func NewClassifier(cfg config.AnalysisConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify runs the decision table
func (c *Classifier) Classify(in Inputs) effect.Status {
	sampleOn := in.Estimate.SampleOn
	sampleOff := in.Estimate.SampleOff
	total := sampleOn + sampleOff
	size := math.Abs(in.Estimate.EffectSize)
	conf := in.Confidence.Score

	// 1. Not enough days on either side to say anything at all
	if sampleOn < c.cfg.MinClassifySample || sampleOff < c.cfg.MinClassifySample {
		// A history that can never produce an OFF baseline is not early,
		// it is unanswerable
		if !in.Sample.OffAttainable && in.Sample.TotalTrackedDays >= c.cfg.InconclusiveMinDays {
			return effect.StatusInconclusive
		}
		return effect.StatusTooEarly
	}

	// 2. Attribution is ambiguous: too many noisy days, or a competing
	// supplement changed state within the buffer window
	if in.Sample.ConfoundRatio() >= c.cfg.ConfoundRatioMax || in.CoStartConflict {
		return effect.StatusConfounded
	}

	// Thin-but-classifiable samples keep accumulating regardless of the
	// apparent effect size
	if sampleOn < c.cfg.MinUsableSample || sampleOff < c.cfg.MinUsableSample {
		return effect.StatusTesting
	}

	// 3. Confidently flat signal over a meaningful stretch
	if conf >= c.cfg.NoEffectMinConfidence && size <= c.cfg.NoEffectMaxSize && total >= c.cfg.NoEffectMinTotal {
		return effect.StatusNoDetectableEffect
	}

	// 4. Confident, material effect
	if conf >= c.cfg.SignificantMinConfidence && size >= c.cfg.SignificantMinSize {
		if in.Estimate.Direction == effect.DirectionNegative {
			return effect.StatusSignificantNegative
		}
		return effect.StatusSignificantPositive
	}

	// 5. Still accumulating, ambiguous signal
	return effect.StatusTesting
}

// ShouldRevealVerdict is the confirmatory gate for implicit tests: below the
// required number of post-generation check-ins the computed status is still
// returned but flagged unconfirmed in the UI. Presentation-layer delay only;
// no recomputation happens here.
func ShouldRevealVerdict(report *effect.Report, checkinsSinceGenerated int) bool {
	if report.Source == effect.SourceExplicitTest {
		return true
	}
	required := 3
	if report.Confidence >= 0.5 && report.SampleDaysOn >= 30 && report.SampleDaysOff >= 30 {
		required = 1
	}
	return checkinsSinceGenerated >= required
}
