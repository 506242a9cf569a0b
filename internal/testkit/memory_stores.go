package testkit

import (
	"context"
	"sort"
	"strings"
	"sync"

	"supptrace/domain/core"
	"supptrace/domain/effect"
	"supptrace/domain/entry"
	"supptrace/domain/intake"
)

// MemoryEntryStore is an in-memory Daily Entry Store for tests and the dev
// command. Upserts on (user, date) like the real store.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[core.UserID]map[core.LocalDate]entry.DailyEntry
}

// NewMemoryEntryStore creates an empty entry store
func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{entries: make(map[core.UserID]map[core.LocalDate]entry.DailyEntry)}
}

// Upsert writes an entry, superseding any prior row for the same day
func (s *MemoryEntryStore) Upsert(e entry.DailyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[e.UserID] == nil {
		s.entries[e.UserID] = make(map[core.LocalDate]entry.DailyEntry)
	}
	s.entries[e.UserID][e.LocalDate] = e
}

// Get returns the entry for one day when present
func (s *MemoryEntryStore) Get(userID core.UserID, day core.LocalDate) (entry.DailyEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID][day]
	return e, ok
}

// GetEntries returns the user's entries inside the range, ascending by date
func (s *MemoryEntryStore) GetEntries(ctx context.Context, userID core.UserID, dateRange core.DateRange) ([]entry.DailyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entry.DailyEntry
	for day, e := range s.entries[userID] {
		if dateRange.Contains(day) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalDate.Before(out[j].LocalDate) })
	return out, nil
}

// CountEntriesSince counts check-ins recorded at or after the timestamp
func (s *MemoryEntryStore) CountEntriesSince(ctx context.Context, userID core.UserID, since core.Timestamp) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.entries[userID] {
		if !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// MemorySupplementRepo is an in-memory SupplementRepository
type MemorySupplementRepo struct {
	mu          sync.RWMutex
	supplements map[core.UserSupplementID]intake.UserSupplement
}

// NewMemorySupplementRepo creates an empty supplement repo
func NewMemorySupplementRepo() *MemorySupplementRepo {
	return &MemorySupplementRepo{supplements: make(map[core.UserSupplementID]intake.UserSupplement)}
}

// GetSupplement retrieves a user supplement by id
func (r *MemorySupplementRepo) GetSupplement(ctx context.Context, id core.UserSupplementID) (*intake.UserSupplement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.supplements[id]
	if !ok {
		return nil, core.ErrSupplementNotFound
	}
	return &s, nil
}

// ListUserSupplements returns all supplements tracked by a user
func (r *MemorySupplementRepo) ListUserSupplements(ctx context.Context, userID core.UserID) ([]intake.UserSupplement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []intake.UserSupplement
	for _, s := range r.supplements {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaveSupplement persists a supplement record
func (r *MemorySupplementRepo) SaveSupplement(ctx context.Context, s *intake.UserSupplement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supplements[s.ID] = *s
	return nil
}

// TransitionLifecycle enforces the one-way testing exit
func (r *MemorySupplementRepo) TransitionLifecycle(ctx context.Context, id core.UserSupplementID, to intake.Lifecycle) error {
	if !to.IsTerminal() {
		return core.NewValidationError("lifecycle", "transition target must be terminal")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.supplements[id]
	if !ok {
		return core.ErrSupplementNotFound
	}
	if s.Lifecycle != intake.LifecycleTesting {
		return nil // already terminal, never revert
	}
	s.Lifecycle = to
	r.supplements[id] = s
	return nil
}

// MemoryPeriodRepo is an in-memory PeriodRepository. It resolves user
// ownership through the supplement repo for GetUserPeriods.
type MemoryPeriodRepo struct {
	mu          sync.RWMutex
	periods     map[core.PeriodID]intake.Period
	supplements *MemorySupplementRepo
}

// NewMemoryPeriodRepo creates an empty period repo
func NewMemoryPeriodRepo(supplements *MemorySupplementRepo) *MemoryPeriodRepo {
	return &MemoryPeriodRepo{
		periods:     make(map[core.PeriodID]intake.Period),
		supplements: supplements,
	}
}

// GetPeriods returns all periods for a supplement, ascending by start date
func (r *MemoryPeriodRepo) GetPeriods(ctx context.Context, supplementID core.UserSupplementID) ([]intake.Period, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []intake.Period
	for _, p := range r.periods {
		if p.SupplementID == supplementID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// GetPeriod retrieves a single period by id
func (r *MemoryPeriodRepo) GetPeriod(ctx context.Context, periodID core.PeriodID) (*intake.Period, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.periods[periodID]
	if !ok {
		return nil, core.ErrPeriodNotFound
	}
	return &p, nil
}

// SavePeriod persists a new period
func (r *MemoryPeriodRepo) SavePeriod(ctx context.Context, period *intake.Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods[period.ID] = *period
	return nil
}

// ClosePeriod sets the end date on an open period
func (r *MemoryPeriodRepo) ClosePeriod(ctx context.Context, periodID core.PeriodID, end core.LocalDate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[periodID]
	if !ok {
		return core.ErrPeriodNotFound
	}
	if p.End != nil {
		return core.ErrPeriodAlreadyClosed
	}
	p.End = &end
	r.periods[periodID] = p
	return nil
}

// GetUserPeriods returns all periods across a user's supplements
func (r *MemoryPeriodRepo) GetUserPeriods(ctx context.Context, userID core.UserID) ([]intake.Period, error) {
	sups, err := r.supplements.ListUserSupplements(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned := make(map[core.UserSupplementID]bool, len(sups))
	for _, s := range sups {
		owned[s.ID] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []intake.Period
	for _, p := range r.periods {
		if owned[p.SupplementID] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// MemoryReportRepo is an in-memory ReportRepository plus CommunityReader.
// FailNextSaves injects write failures for retry-path tests.
type MemoryReportRepo struct {
	mu            sync.RWMutex
	reports       []effect.Report
	supplements   *MemorySupplementRepo
	FailNextSaves int
	FailWith      error
}

// NewMemoryReportRepo creates an empty report repo
func NewMemoryReportRepo(supplements *MemorySupplementRepo) *MemoryReportRepo {
	return &MemoryReportRepo{supplements: supplements}
}

// SaveReport appends a new report version, idempotent on id
func (r *MemoryReportRepo) SaveReport(ctx context.Context, report *effect.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNextSaves > 0 {
		r.FailNextSaves--
		if r.FailWith != nil {
			return r.FailWith
		}
		return core.ErrStoreTransient
	}
	for _, existing := range r.reports {
		if existing.ID == report.ID {
			return nil
		}
	}
	r.reports = append(r.reports, *report)
	return nil
}

// LatestReport returns the newest report for the pair
func (r *MemoryReportRepo) LatestReport(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID) (*effect.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *effect.Report
	for i := range r.reports {
		report := r.reports[i]
		if report.UserID != userID || report.UserSupplementID != supplementID {
			continue
		}
		if latest == nil || report.CreatedAt.After(latest.CreatedAt) {
			latest = &r.reports[i]
		}
	}
	if latest == nil {
		return nil, core.ErrReportNotFound
	}
	copied := *latest
	return &copied, nil
}

// LatestReportsForUser returns the newest report per supplement for a user
func (r *MemoryReportRepo) LatestReportsForUser(ctx context.Context, userID core.UserID) ([]effect.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest := make(map[core.UserSupplementID]effect.Report)
	for _, report := range r.reports {
		if report.UserID != userID {
			continue
		}
		current, ok := latest[report.UserSupplementID]
		if !ok || report.CreatedAt.After(current.CreatedAt) {
			latest[report.UserSupplementID] = report
		}
	}
	out := make([]effect.Report, 0, len(latest))
	for _, report := range latest {
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserSupplementID < out[j].UserSupplementID
	})
	return out, nil
}

// ReportHistory returns all versions for a pair, newest first
func (r *MemoryReportRepo) ReportHistory(ctx context.Context, userID core.UserID, supplementID core.UserSupplementID, limit int) ([]effect.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []effect.Report
	for _, report := range r.reports {
		if report.UserID == userID && report.UserSupplementID == supplementID {
			out = append(out, report)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EffectSizesByCanonicalName implements CommunityReader over stored reports
func (r *MemoryReportRepo) EffectSizesByCanonicalName(ctx context.Context, canonicalName string, excludeUser core.UserID) ([]float64, error) {
	latest, err := r.latestByPair()
	if err != nil {
		return nil, err
	}

	var sizes []float64
	for _, report := range latest {
		if report.UserID == excludeUser {
			continue
		}
		sup, err := r.supplements.GetSupplement(ctx, report.UserSupplementID)
		if err != nil {
			continue
		}
		if strings.EqualFold(sup.CanonicalName, canonicalName) {
			sizes = append(sizes, report.EffectSize)
		}
	}
	return sizes, nil
}

// ReportCount returns how many versions are stored
func (r *MemoryReportRepo) ReportCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reports)
}

type reportPair struct {
	user       core.UserID
	supplement core.UserSupplementID
}

func (r *MemoryReportRepo) latestByPair() (map[reportPair]effect.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest := make(map[reportPair]effect.Report)
	for _, report := range r.reports {
		key := reportPair{user: report.UserID, supplement: report.UserSupplementID}
		current, ok := latest[key]
		if !ok || report.CreatedAt.After(current.CreatedAt) {
			latest[key] = report
		}
	}
	return latest, nil
}
