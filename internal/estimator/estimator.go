package estimator

import (
	"math"

	"supptrace/domain/effect"
	"supptrace/domain/entry"
	"supptrace/internal/window"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Estimator turns a filtered ON/OFF sample into a normalized effect estimate
type Estimator struct {
	// effectSizeClamp bounds the Cohen's-d-like statistic; clamped values are
	// rescaled by the same constant so reports land in roughly [-1, 1]
	effectSizeClamp float64
	// directionEpsilon is the dead zone around zero for the neutral direction
	directionEpsilon float64
}

// NewEstimator creates an effect estimator
func NewEstimator(effectSizeClamp, directionEpsilon float64) *Estimator {
	if effectSizeClamp <= 0 {
		effectSizeClamp = 2.0
	}
	return &Estimator{effectSizeClamp: effectSizeClamp, directionEpsilon: directionEpsilon}
}

// WelchStat is the supplementary t statistic carried in the report's raw
// context. It never drives the classifier; confidence here is heuristic,
// not a hypothesis test.
type WelchStat struct {
	T float64
	P float64
}

// Estimate computes mean(ON) vs mean(OFF), the normalized effect size and
// its direction. The benefit sign is flipped for inverse metrics before the
// direction is assigned.
func (e *Estimator) Estimate(sample window.Sample, spec entry.MetricSpec) effect.Estimate {
	est := effect.Estimate{
		SampleOn:  len(sample.OnValues),
		SampleOff: len(sample.OffValues),
		Direction: effect.DirectionNeutral,
	}

	if len(sample.OnValues) > 0 {
		meanOn, _ := stats.Mean(sample.OnValues)
		est.MeanOn = &meanOn
	}
	if len(sample.OffValues) > 0 {
		meanOff, _ := stats.Mean(sample.OffValues)
		est.MeanOff = &meanOff
	}
	if est.MeanOn == nil || est.MeanOff == nil {
		return est
	}

	absChange := *est.MeanOn - *est.MeanOff
	est.AbsoluteChange = &absChange
	if *est.MeanOff != 0 {
		pct := absChange / *est.MeanOff
		est.PercentChange = &pct
	}

	est.PooledSD = pooledStdDev(sample.OnValues, sample.OffValues)

	var d float64
	switch {
	case est.PooledSD > 0:
		d = absChange / est.PooledSD
	case absChange > 0:
		d = e.effectSizeClamp
	case absChange < 0:
		d = -e.effectSizeClamp
	}

	// Inverse metrics: a drop is the benefit
	if !spec.HigherIsBetter {
		d = -d
	}

	d = clamp(d, -e.effectSizeClamp, e.effectSizeClamp)
	est.EffectSize = d / e.effectSizeClamp

	switch {
	case est.EffectSize > e.directionEpsilon:
		est.Direction = effect.DirectionPositive
	case est.EffectSize < -e.directionEpsilon:
		est.Direction = effect.DirectionNegative
	default:
		est.Direction = effect.DirectionNeutral
	}

	return est
}

// Welch computes the supplementary Welch t statistic and approximate p-value
// for the ON/OFF split, nil when either sample is too thin
func (e *Estimator) Welch(sample window.Sample) *WelchStat {
	n1 := float64(len(sample.OnValues))
	n2 := float64(len(sample.OffValues))
	if n1 < 2 || n2 < 2 {
		return nil
	}

	mean1, _ := stats.Mean(sample.OnValues)
	mean2, _ := stats.Mean(sample.OffValues)
	var1 := sampleVariance(sample.OnValues, mean1)
	var2 := sampleVariance(sample.OffValues, mean2)

	se := math.Sqrt(var1/n1 + var2/n2)
	if se == 0 {
		return nil
	}
	t := (mean1 - mean2) / se

	// Welch-Satterthwaite degrees of freedom
	df := math.Pow(var1/n1+var2/n2, 2) /
		(math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1))
	if df <= 0 || math.IsNaN(df) {
		return nil
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - tDist.CDF(math.Abs(t)))
	p = clamp(p, 0, 1)

	return &WelchStat{T: t, P: p}
}

// OnsetDays estimates how many days into the ON period the effect emerged:
// the first day where the running ON mean crosses the midpoint between the
// OFF and ON means. Nil when the estimate is not meaningful.
func (e *Estimator) OnsetDays(sample window.Sample, est effect.Estimate) *int {
	if est.MeanOn == nil || est.MeanOff == nil || len(sample.OnSeries) < 2 {
		return nil
	}
	if *est.MeanOn == *est.MeanOff {
		return nil
	}

	midpoint := (*est.MeanOn + *est.MeanOff) / 2
	rising := *est.MeanOn > *est.MeanOff

	first := sample.OnSeries[0].Date
	var runningSum float64
	for i, dv := range sample.OnSeries {
		runningSum += dv.Value
		runningMean := runningSum / float64(i+1)
		crossed := (rising && runningMean >= midpoint) || (!rising && runningMean <= midpoint)
		if crossed {
			days := first.DaysUntil(dv.Date) + 1
			return &days
		}
	}
	return nil
}

// pooledStdDev is the Cohen's d denominator over both groups
func pooledStdDev(group1, group2 []float64) float64 {
	n1 := float64(len(group1))
	n2 := float64(len(group2))
	if n1+n2 < 3 {
		return 0
	}

	mean1, _ := stats.Mean(group1)
	mean2, _ := stats.Mean(group2)
	var1 := sampleVariance(group1, mean1)
	var2 := sampleVariance(group2, mean2)

	pooled := ((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2)
	if pooled <= 0 {
		return 0
	}
	return math.Sqrt(pooled)
}

func sampleVariance(data []float64, mean float64) float64 {
	if len(data) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range data {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(data)-1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
