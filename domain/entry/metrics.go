package entry

import (
	"supptrace/domain/core"
)

// MetricName identifies one of the tracked wellbeing metrics
type MetricName string

const (
	MetricPain         MetricName = "pain"
	MetricMood         MetricName = "mood"
	MetricSleepQuality MetricName = "sleep_quality"
	MetricEnergy       MetricName = "energy"
	MetricFocus        MetricName = "focus"
)

// String returns the metric name
func (m MetricName) String() string { return string(m) }

// MetricSpec describes how a metric is scaled and interpreted.
// HigherIsBetter drives the benefit sign: for inverse metrics such as pain,
// a drop in the ON-period mean is a positive effect.
type MetricSpec struct {
	Name           MetricName
	ScaleMin       float64
	ScaleMax       float64
	HigherIsBetter bool
	Optional       bool
}

// metricRegistry holds the known metrics and their interpretation
var metricRegistry = map[MetricName]MetricSpec{
	MetricPain:         {Name: MetricPain, ScaleMin: 0, ScaleMax: 10, HigherIsBetter: false},
	MetricMood:         {Name: MetricMood, ScaleMin: 0, ScaleMax: 10, HigherIsBetter: true},
	MetricSleepQuality: {Name: MetricSleepQuality, ScaleMin: 0, ScaleMax: 10, HigherIsBetter: true},
	MetricEnergy:       {Name: MetricEnergy, ScaleMin: 0, ScaleMax: 10, HigherIsBetter: true, Optional: true},
	MetricFocus:        {Name: MetricFocus, ScaleMin: 0, ScaleMax: 10, HigherIsBetter: true, Optional: true},
}

// LookupMetric resolves a metric name against the registry
func LookupMetric(name MetricName) (MetricSpec, error) {
	spec, ok := metricRegistry[name]
	if !ok {
		return MetricSpec{}, core.NewValidationError("metric", "unknown metric "+string(name))
	}
	return spec, nil
}

// KnownMetrics returns the registered metric names in a stable order
func KnownMetrics() []MetricName {
	return []MetricName{MetricPain, MetricMood, MetricSleepQuality, MetricEnergy, MetricFocus}
}
