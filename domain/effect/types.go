package effect

import (
	"supptrace/domain/core"
)

// Status is the categorical verdict on a supplement's effect
type Status string

const (
	StatusTooEarly            Status = "too_early"
	StatusTesting             Status = "testing"
	StatusSignificantPositive Status = "significant_positive"
	StatusSignificantNegative Status = "significant_negative"
	StatusConfounded          Status = "confounded"
	StatusNoDetectableEffect  Status = "no_detectable_effect"
	StatusInconclusive        Status = "inconclusive"
)

// IsTerminal reports whether the status ends the supplement's testing lifecycle
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSignificantPositive, StatusSignificantNegative, StatusNoDetectableEffect:
		return true
	}
	return false
}

// Direction is the sign of the detected benefit
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

// AnalysisSource records whether the user explicitly asked for the test
// or the engine ran it implicitly in the background
type AnalysisSource string

const (
	SourceExplicitTest AnalysisSource = "explicit_test"
	SourceImplicit     AnalysisSource = "implicit"
)

// ResponderLabel positions the user against the community distribution
type ResponderLabel string

const (
	ResponderAboveAverage ResponderLabel = "above_average"
	ResponderTypical      ResponderLabel = "typical"
	ResponderBelowAverage ResponderLabel = "below_average"
)

// Estimate holds the raw ON-vs-OFF comparison for one metric
type Estimate struct {
	MeanOn         *float64 `json:"mean_on"`
	MeanOff        *float64 `json:"mean_off"`
	AbsoluteChange *float64 `json:"absolute_change"`
	PercentChange  *float64 `json:"percent_change"`
	// EffectSize is the pooled-SD normalized change, rescaled to roughly [-1, 1],
	// with the benefit sign already flipped for inverse metrics
	EffectSize float64   `json:"effect_size"`
	Direction  Direction `json:"direction"`
	PooledSD   float64   `json:"pooled_sd"`
	SampleOn   int       `json:"sample_on"`
	SampleOff  int       `json:"sample_off"`
}

// RawContext carries enough inputs for a caller to explain why a status was
// reached. Opacity is treated as a defect; every report ships these.
type RawContext struct {
	LookbackDays      int      `json:"lookback_days"`
	TotalTrackedDays  int      `json:"total_tracked_days"`
	NoisyDays         int      `json:"noisy_days"`
	BoundaryExcluded  int      `json:"boundary_excluded"`
	MissingMetricDays int      `json:"missing_metric_days"`
	ConfoundRatio     float64  `json:"confound_ratio"`
	CoStartConflict   bool     `json:"co_start_conflict"`
	NoiseReasons      []string `json:"noise_reasons,omitempty"`
	SampleFactor      float64  `json:"sample_factor"`
	VarianceFactor    float64  `json:"variance_factor"`
	CompletenessScore float64  `json:"completeness_factor"`
	WelchT            *float64 `json:"welch_t,omitempty"`
	WelchP            *float64 `json:"welch_p,omitempty"`
}

// Report is the versioned verdict record for one (user, supplement) pair.
// Regeneration supersedes rather than mutates; the newest CreatedAt wins.
type Report struct {
	ID               core.ReportID         `json:"id"`
	UserID           core.UserID           `json:"user_id"`
	UserSupplementID core.UserSupplementID `json:"user_supplement_id"`

	Status        Status    `json:"status"`
	PrimaryMetric string    `json:"primary_metric"`
	Direction     Direction `json:"effect_direction"`
	EffectSize    float64   `json:"effect_size"`

	AbsoluteChange *float64 `json:"absolute_change"`
	PercentChange  *float64 `json:"percent_change"`
	Confidence     float64  `json:"confidence_score"`

	SampleDaysOn          int `json:"sample_days_on"`
	SampleDaysOff         int `json:"sample_days_off"`
	DaysExcludedConfounds int `json:"days_excluded_confounds"`

	OnsetDays           *int            `json:"onset_days,omitempty"`
	ResponderPercentile *float64        `json:"responder_percentile,omitempty"`
	ResponderLabel      *ResponderLabel `json:"responder_label,omitempty"`
	MechanismLabel      string          `json:"mechanism_label,omitempty"`

	RawContext RawContext     `json:"raw_context"`
	Source     AnalysisSource `json:"analysis_source"`
	CreatedAt  core.Timestamp `json:"created_at"`
}

// PatternBucket groups reports for the dashboard
type PatternBucket string

const (
	BucketWorking      PatternBucket = "working"
	BucketHurting      PatternBucket = "hurting"
	BucketNoSignal     PatternBucket = "no_signal"
	BucketStillTesting PatternBucket = "still_testing"
)

// BucketFor maps a status to its dashboard bucket
func BucketFor(s Status) PatternBucket {
	switch s {
	case StatusSignificantPositive:
		return BucketWorking
	case StatusSignificantNegative:
		return BucketHurting
	case StatusNoDetectableEffect, StatusInconclusive:
		return BucketNoSignal
	default:
		return BucketStillTesting
	}
}

// Summary is the slim projection used by the patterns dashboard
type Summary struct {
	UserSupplementID core.UserSupplementID `json:"user_supplement_id"`
	SupplementName   string                `json:"supplement_name"`
	Status           Status                `json:"status"`
	Bucket           PatternBucket         `json:"bucket"`
	PrimaryMetric    string                `json:"primary_metric"`
	Direction        Direction             `json:"effect_direction"`
	EffectSize       float64               `json:"effect_size"`
	Confidence       float64               `json:"confidence_score"`
	Revealed         bool                  `json:"revealed"`
	MechanismHTML    string                `json:"mechanism_html,omitempty"`
	CreatedAt        core.Timestamp        `json:"created_at"`
}
