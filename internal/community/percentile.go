package community

import (
	"context"

	"supptrace/domain/core"
	"supptrace/domain/effect"
	"supptrace/internal"
	"supptrace/ports"

	"github.com/montanaflynn/stats"
)

// Placement positions one user's effect size inside the anonymized
// population distribution for the same canonical supplement
type Placement struct {
	Percentile float64
	Label      effect.ResponderLabel
	Population int
}

// Enricher computes the optional community percentile. Lookups fail soft:
// any error or an undersized population yields nil and never blocks the
// primary report.
type Enricher struct {
	reader        ports.CommunityReader
	minPopulation int
	log           *internal.Logger
}

// NewEnricher creates a community enricher
func NewEnricher(reader ports.CommunityReader, minPopulation int, log *internal.Logger) *Enricher {
	if minPopulation <= 0 {
		minPopulation = 20
	}
	return &Enricher{reader: reader, minPopulation: minPopulation, log: log}
}

// Place ranks the user's effect size against other users' latest effect
// sizes for the canonical supplement. Nil when the cohort is too small,
// the reader is absent, or the lookup fails.
func (e *Enricher) Place(ctx context.Context, canonicalName string, excludeUser core.UserID, effectSize float64) *Placement {
	if e.reader == nil || canonicalName == "" {
		return nil
	}

	sizes, err := e.reader.EffectSizesByCanonicalName(ctx, canonicalName, excludeUser)
	if err != nil {
		e.log.Warn("community lookup failed for %s: %v", canonicalName, err)
		return nil
	}
	if len(sizes) < e.minPopulation {
		return nil
	}

	percentile := percentileRank(sizes, effectSize)
	return &Placement{
		Percentile: percentile,
		Label:      labelFor(sizes, effectSize),
		Population: len(sizes),
	}
}

// percentileRank is the fraction of the population at or below the value
func percentileRank(population []float64, value float64) float64 {
	below := 0
	for _, v := range population {
		if v <= value {
			below++
		}
	}
	return 100 * float64(below) / float64(len(population))
}

// labelFor buckets the value by the population's tertile cuts
func labelFor(population []float64, value float64) effect.ResponderLabel {
	lower, err := stats.Percentile(population, 100.0/3.0)
	if err != nil {
		return effect.ResponderTypical
	}
	upper, err := stats.Percentile(population, 200.0/3.0)
	if err != nil {
		return effect.ResponderTypical
	}
	switch {
	case value > upper:
		return effect.ResponderAboveAverage
	case value < lower:
		return effect.ResponderBelowAverage
	default:
		return effect.ResponderTypical
	}
}
