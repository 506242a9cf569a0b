package app

import (
	"context"
	"sort"
	"strings"
	"sync"

	"supptrace/domain/core"
	"supptrace/domain/effect"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
	"supptrace/internal"
	"supptrace/internal/cache"
	"supptrace/internal/classifier"
	"supptrace/internal/community"
	"supptrace/internal/config"
	"supptrace/internal/confound"
	"supptrace/internal/errors"
	"supptrace/internal/estimator"
	"supptrace/internal/scorer"
	"supptrace/internal/window"
	"supptrace/ports"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ReportService is the report builder: it walks the pipeline from intake
// periods and daily entries through windowing, estimation, scoring and
// classification, persists the result and invalidates dependent caches.
type ReportService struct {
	cfg config.AnalysisConfig

	entries     ports.EntryReader
	periods     ports.PeriodRepository
	supplements ports.SupplementRepository
	reports     ports.ReportRepository

	tagger     *confound.Tagger
	builder    *window.Builder
	estimator  *estimator.Estimator
	scorer     *scorer.Scorer
	classifier *classifier.Classifier
	enricher   *community.Enricher

	bus *cache.InvalidationBus
	log *internal.Logger

	// One in-flight generation per (user, supplement); concurrent reads of
	// the stored report stay lock-free
	genLocks sync.Map

	// dirty pairs force a recompute on the next non-forced generate
	dirtyMu sync.Mutex
	dirty   map[pairKey]bool

	// sem bounds parallel generation in the patterns fan-out
	sem *semaphore.Weighted
}

type pairKey struct {
	user       core.UserID
	supplement core.UserSupplementID
}

// NewReportService wires the full pipeline
func NewReportService(
	cfg config.AnalysisConfig,
	entries ports.EntryReader,
	periods ports.PeriodRepository,
	supplements ports.SupplementRepository,
	reports ports.ReportRepository,
	enricher *community.Enricher,
	bus *cache.InvalidationBus,
	log *internal.Logger,
) *ReportService {
	tagger := confound.NewTagger()
	svc := &ReportService{
		cfg:         cfg,
		entries:     entries,
		periods:     periods,
		supplements: supplements,
		reports:     reports,
		tagger:      tagger,
		builder:     window.NewBuilder(tagger, cfg.BoundaryBufferDays),
		estimator:   estimator.NewEstimator(cfg.EffectSizeClamp, cfg.DirectionEpsilon),
		scorer:      scorer.NewScorer(cfg.SampleSaturationDays),
		classifier:  classifier.NewClassifier(cfg),
		enricher:    enricher,
		bus:         bus,
		log:         log,
		dirty:       make(map[pairKey]bool),
		sem:         semaphore.NewWeighted(int64(max(1, cfg.MaxParallelReports))),
	}
	if bus != nil {
		svc.watchInvalidations()
	}
	return svc
}

// watchInvalidations marks pairs dirty when their periods change so a
// non-forced generate knows the stored report is stale
func (s *ReportService) watchInvalidations() {
	ch, _ := s.bus.Subscribe(64)
	go func() {
		for ev := range ch {
			if ev.Reason != cache.ReasonPeriodChanged {
				continue
			}
			s.dirtyMu.Lock()
			s.dirty[pairKey{user: ev.UserID, supplement: ev.SupplementID}] = true
			s.dirtyMu.Unlock()
		}
	}()
}

// Generate returns the effect report for a (user, supplement) pair.
// Without force the most recent stored report is returned when it exists
// and nothing invalidated it; with force, or on a miss, the pipeline runs
// and a new report version is persisted.
func (s *ReportService) Generate(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID, force bool, source effect.AnalysisSource) (*effect.Report, error) {
	key := pairKey{user: userID, supplement: supplementID}

	if !force && !s.isDirty(key) {
		stored, err := s.reports.LatestReport(ctx, userID, supplementID)
		if err == nil {
			return stored, nil
		}
		if !core.IsNotFoundError(err) {
			return nil, err
		}
	}

	lockAny, _ := s.genLocks.LoadOrStore(key, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have finished the same recompute while we waited
	if !force && !s.isDirty(key) {
		if stored, err := s.reports.LatestReport(ctx, userID, supplementID); err == nil {
			return stored, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	report, err := s.compute(ctx, userID, supplementID, source)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, report); err != nil {
		// Stale-but-available beats failing hard: surface the previously
		// cached report when the write cannot land
		if stored, readErr := s.reports.LatestReport(ctx, userID, supplementID); readErr == nil {
			s.log.Error("report write failed for %s, serving cached version: %v", supplementID, err)
			return stored, nil
		}
		return nil, err
	}

	s.clearDirty(key)
	s.transitionLifecycle(ctx, supplementID, report.Status)

	if s.bus != nil {
		s.bus.Publish(cache.Invalidation{
			UserID:       userID,
			SupplementID: supplementID,
			Reason:       cache.ReasonReportWritten,
		})
	}
	return report, nil
}

// compute runs the pipeline without touching storage for the result
func (s *ReportService) compute(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID, source effect.AnalysisSource) (*effect.Report, error) {
	sup, err := s.supplements.GetSupplement(ctx, supplementID)
	if err != nil {
		return nil, err
	}
	if sup.UserID != userID {
		return nil, core.ErrSupplementNotFound
	}

	metricName := entry.MetricName(sup.PrimaryMetric)
	spec, err := entry.LookupMetric(metricName)
	if err != nil {
		return nil, err
	}

	today := core.DateOf(core.Now().Time())
	lookback := core.DateRange{From: today.AddDays(-(s.cfg.LookbackDays - 1)), To: today}

	targetPeriods, err := s.periods.GetPeriods(ctx, supplementID)
	if err != nil {
		return nil, err
	}
	userPeriods, err := s.periods.GetUserPeriods(ctx, userID)
	if err != nil {
		return nil, err
	}
	dailyEntries, err := s.entries.GetEntries(ctx, userID, lookback)
	if err != nil {
		return nil, err
	}

	sample := s.builder.Build(dailyEntries, targetPeriods, supplementID, metricName)
	adjacency := s.tagger.DetectAdjacency(targetPeriods, userPeriods, s.cfg.CoStartBufferDays, lookback)

	est := s.estimator.Estimate(sample, spec)
	conf := s.scorer.Score(sample, est)
	status := s.classifier.Classify(classifier.Inputs{
		Sample:          sample,
		Estimate:        est,
		Confidence:      conf,
		CoStartConflict: adjacency.CoStartConflict,
	})

	report := &effect.Report{
		ID:                    core.ReportID(core.NewID()),
		UserID:                userID,
		UserSupplementID:      supplementID,
		Status:                status,
		PrimaryMetric:         sup.PrimaryMetric,
		Direction:             est.Direction,
		EffectSize:            est.EffectSize,
		AbsoluteChange:        est.AbsoluteChange,
		PercentChange:         est.PercentChange,
		Confidence:            conf.Score,
		SampleDaysOn:          est.SampleOn,
		SampleDaysOff:         est.SampleOff,
		DaysExcludedConfounds: sample.NoisyDays,
		MechanismLabel:        sup.MechanismNote,
		Source:                source,
		CreatedAt:             core.Now(),
		RawContext: effect.RawContext{
			LookbackDays:      s.cfg.LookbackDays,
			TotalTrackedDays:  sample.TotalTrackedDays,
			NoisyDays:         sample.NoisyDays,
			BoundaryExcluded:  sample.BoundaryExcluded,
			MissingMetricDays: sample.MissingMetricDays,
			ConfoundRatio:     sample.ConfoundRatio(),
			CoStartConflict:   adjacency.CoStartConflict,
			NoiseReasons:      flagStrings(sample.NoiseReasons),
			SampleFactor:      conf.SampleFactor,
			VarianceFactor:    conf.VarianceFactor,
			CompletenessScore: conf.CompletenessFactor,
		},
	}

	if welch := s.estimator.Welch(sample); welch != nil {
		report.RawContext.WelchT = &welch.T
		report.RawContext.WelchP = &welch.P
	}

	if status == effect.StatusSignificantPositive || status == effect.StatusSignificantNegative {
		report.OnsetDays = s.estimator.OnsetDays(sample, est)
	}

	if s.enricher != nil {
		if placement := s.enricher.Place(ctx, sup.CanonicalName, userID, est.EffectSize); placement != nil {
			report.ResponderPercentile = &placement.Percentile
			label := placement.Label
			report.ResponderLabel = &label
		}
	}

	return report, nil
}

// persist writes the new report version, retrying once on transient failure.
// Saves are idempotent on report ID so the retry cannot double-insert.
func (s *ReportService) persist(ctx context.Context, report *effect.Report) error {
	err := s.reports.SaveReport(ctx, report)
	if err == nil {
		return nil
	}
	if core.IsTransientError(err) {
		s.log.Warn("transient report write failure, retrying once: %v", err)
		if retryErr := s.reports.SaveReport(ctx, report); retryErr == nil {
			return nil
		}
	}
	return errors.Wrap(err, "failed to persist effect report")
}

// transitionLifecycle moves the supplement out of testing on a terminal
// verdict. One-way; a later regeneration never reverts it.
func (s *ReportService) transitionLifecycle(ctx context.Context, supplementID core.UserSupplementID, status effect.Status) {
	if !status.IsTerminal() {
		return
	}
	to := intake.LifecycleComplete
	if status == effect.StatusNoDetectableEffect {
		to = intake.LifecycleInconclusive
	}
	if err := s.supplements.TransitionLifecycle(ctx, supplementID, to); err != nil {
		s.log.Warn("lifecycle transition for %s failed: %v", supplementID, err)
	}
}

// Patterns returns the newest report summary per supplement for the
// dashboard, deduped by supplement name: highest confidence wins, then
// largest absolute effect.
func (s *ReportService) Patterns(ctx context.Context, userID core.UserID) ([]effect.Summary, error) {
	sups, err := s.supplements.ListUserSupplements(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*effect.Summary, len(sups))
	g, gctx := errgroup.WithContext(ctx)
	for i := range sups {
		i := i
		sup := sups[i]
		g.Go(func() error {
			if err := s.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer s.sem.Release(1)

			report, err := s.Generate(gctx, userID, sup.ID, false, effect.SourceImplicit)
			if err != nil {
				return err
			}
			revealed, err := s.revealed(gctx, report)
			if err != nil {
				return err
			}
			summaries[i] = &effect.Summary{
				UserSupplementID: sup.ID,
				SupplementName:   sup.Name,
				Status:           report.Status,
				Bucket:           effect.BucketFor(report.Status),
				PrimaryMetric:    report.PrimaryMetric,
				Direction:        report.Direction,
				EffectSize:       report.EffectSize,
				Confidence:       report.Confidence,
				Revealed:         revealed,
				CreatedAt:        report.CreatedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dedupByName(summaries), nil
}

// revealed applies the confirmatory gate against check-ins recorded after
// the report was generated
func (s *ReportService) revealed(ctx context.Context, report *effect.Report) (bool, error) {
	checkins, err := s.entries.CountEntriesSince(ctx, report.UserID, report.CreatedAt)
	if err != nil {
		return false, err
	}
	return classifier.ShouldRevealVerdict(report, checkins), nil
}

// dedupByName keeps one summary per supplement name
func dedupByName(summaries []*effect.Summary) []effect.Summary {
	best := make(map[string]*effect.Summary)
	order := []string{}
	for _, sum := range summaries {
		if sum == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(sum.SupplementName))
		current, seen := best[name]
		if !seen {
			best[name] = sum
			order = append(order, name)
			continue
		}
		if sum.Confidence > current.Confidence {
			best[name] = sum
			continue
		}
		if sum.Confidence == current.Confidence && abs(sum.EffectSize) > abs(current.EffectSize) {
			best[name] = sum
		}
	}

	sort.Strings(order)
	result := make([]effect.Summary, 0, len(order))
	for _, name := range order {
		result = append(result, *best[name])
	}
	return result
}

// LatestReports returns the newest stored report per supplement for a user
func (s *ReportService) LatestReports(ctx context.Context, userID core.UserID) ([]effect.Report, error) {
	return s.reports.LatestReportsForUser(ctx, userID)
}

// History returns past report versions for auditability, newest first
func (s *ReportService) History(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID, limit int) ([]effect.Report, error) {
	return s.reports.ReportHistory(ctx, userID, supplementID, limit)
}

// Revealed exposes the confirmatory gate for the API layer
func (s *ReportService) Revealed(ctx context.Context, report *effect.Report) (bool, error) {
	return s.revealed(ctx, report)
}

func (s *ReportService) isDirty(key pairKey) bool {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return s.dirty[key]
}

func (s *ReportService) clearDirty(key pairKey) {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	delete(s.dirty, key)
}

func flagStrings(flags []confound.Flag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
