package scorer

import (
	"math"

	"supptrace/domain/effect"
	"supptrace/internal/window"
)

// Confidence is the heuristic 0-1 trust score plus its factor breakdown.
// Each factor is monotone and bounded in [0,1]; the score is their product,
// so it can never exceed the completeness factor: a mostly-noisy history
// caps confidence no matter how clean the apparent effect looks.
type Confidence struct {
	Score              float64
	SampleFactor       float64
	VarianceFactor     float64
	CompletenessFactor float64
}

// Scorer combines sample sizes, variance and data completeness
type Scorer struct {
	// saturationDays is where the sample factor flattens; the factor reaches
	// ~0.95 when the thinner window holds this many days
	saturationDays int
}

// NewScorer creates a confidence scorer
func NewScorer(saturationDays int) *Scorer {
	if saturationDays <= 0 {
		saturationDays = 30
	}
	return &Scorer{saturationDays: saturationDays}
}

// Score computes the confidence for an estimate over its sample
func (s *Scorer) Score(sample window.Sample, est effect.Estimate) Confidence {
	c := Confidence{
		SampleFactor:       s.sampleFactor(est.SampleOn, est.SampleOff),
		VarianceFactor:     s.varianceFactor(est),
		CompletenessFactor: s.completenessFactor(sample),
	}
	c.Score = clamp01(c.SampleFactor * c.VarianceFactor * c.CompletenessFactor)
	return c
}

// sampleFactor rises with the thinner of the two windows and saturates near
// saturationDays: 1 - exp(-n/tau) with tau = saturationDays/3
func (s *Scorer) sampleFactor(sampleOn, sampleOff int) float64 {
	n := sampleOn
	if sampleOff < n {
		n = sampleOff
	}
	if n <= 0 {
		return 0
	}
	tau := float64(s.saturationDays) / 3.0
	return clamp01(1 - math.Exp(-float64(n)/tau))
}

// varianceFactor penalizes pooled variance that dwarfs the observed change.
// noise == pooledSD / (|change| + pooledSD) lands in [0,1]; even a pure-noise
// signal keeps a 0.7 floor so large clean samples of a null effect can still
// reach the no-effect confidence threshold.
func (s *Scorer) varianceFactor(est effect.Estimate) float64 {
	if est.AbsoluteChange == nil {
		return 0
	}
	if est.PooledSD <= 0 {
		return 1
	}
	change := math.Abs(*est.AbsoluteChange)
	noise := est.PooledSD / (change + est.PooledSD)
	return clamp01(1 - 0.3*noise)
}

// completenessFactor is the surviving fraction of tracked in-window days
func (s *Scorer) completenessFactor(sample window.Sample) float64 {
	if sample.TotalTrackedDays <= 0 {
		return 0
	}
	excluded := float64(sample.ExcludedCount)
	return clamp01(1 - excluded/float64(sample.TotalTrackedDays))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
