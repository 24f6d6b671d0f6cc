package basis

import (
	"context"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grainstats/basis-tracker/internal/geo"
	"github.com/grainstats/basis-tracker/internal/model"
)

// ErrZipNotFound is returned when a ZIP code has no known centroid.
var ErrZipNotFound = eris.New("basis: zip code not found")

// ErrFacilityNotFound is returned when a facility id does not exist.
var ErrFacilityNotFound = eris.New("basis: facility not found")

// ErrOutlierUnconfirmed is returned by Submit when a basis value falls
// outside the plausible range and the caller has not confirmed it.
var ErrOutlierUnconfirmed = eris.Errorf("basis: value exceeds ±%d cents, confirmation required", model.OutlierThresholdCents)

// Store is the persistence surface the service depends on. The store
// packages satisfy it.
type Store interface {
	GetZipCentroid(ctx context.Context, zip string) (*model.ZipCentroid, error)
	FacilitiesInBounds(ctx context.Context, b geo.Bounds) ([]model.Facility, error)
	GetFacility(ctx context.Context, id string) (*model.Facility, error)
	CreateFacility(ctx context.Context, nf model.NewFacility) (*model.Facility, error)
	CreateBasisReport(ctx context.Context, nr model.NewBasisReport) (*model.BasisReport, error)
	ReportsSince(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth, since time.Time) ([]model.BasisReport, error)
	LastReportAt(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) (*time.Time, error)
	SaveFacility(ctx context.Context, userID, facilityID string) error
	IsFacilitySaved(ctx context.Context, userID, facilityID string) (bool, error)
	ListSavedFacilities(ctx context.Context, userID string) ([]model.Facility, error)
}

// Windows holds the aggregation window policy. All windows are half-open
// (now-w, now], and trend days are bucketed in Loc.
type Windows struct {
	StaleAfter  time.Duration
	BasisWindow time.Duration
	TrendWindow time.Duration
	StatsWindow time.Duration
	Loc         *time.Location
}

// DefaultWindows returns the standard policy: 14-day staleness, 30-day
// current-basis and trend windows, 7-day stats, US Central days.
func DefaultWindows() Windows {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		loc = time.UTC
	}
	return Windows{
		StaleAfter:  14 * 24 * time.Hour,
		BasisWindow: 30 * 24 * time.Hour,
		TrendWindow: 30 * 24 * time.Hour,
		StatsWindow: 7 * 24 * time.Hour,
		Loc:         loc,
	}
}

// Service implements facility search and report aggregation on top of a
// Store.
type Service struct {
	store   Store
	clock   clockwork.Clock
	windows Windows
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the wall clock, used by tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithWindows overrides the aggregation window policy.
func WithWindows(w Windows) Option {
	return func(s *Service) { s.windows = w }
}

// NewService builds a Service with the default windows and wall clock.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		clock:   clockwork.NewRealClock(),
		windows: DefaultWindows(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Windows returns the active aggregation window policy.
func (s *Service) Windows() Windows {
	return s.windows
}

// ResolveZip looks up the centroid for a ZIP code. Returns ErrZipNotFound
// when the ZIP is unknown.
func (s *Service) ResolveZip(ctx context.Context, zip string) (*model.ZipCentroid, error) {
	if !model.ValidZip(zip) {
		return nil, eris.Errorf("basis: %q is not a 5-digit zip code", zip)
	}
	c, err := s.store.GetZipCentroid(ctx, zip)
	if err != nil {
		return nil, eris.Wrap(err, "basis: resolve zip")
	}
	if c == nil {
		return nil, ErrZipNotFound
	}
	return c, nil
}

// NearbyFacilities returns facilities within radiusMiles of the given
// point, ordered nearest first (ties broken by facility id). The store
// is queried with a bounding box and the exact great-circle distance is
// applied here.
func (s *Service) NearbyFacilities(ctx context.Context, lat, lng, radiusMiles float64) ([]model.NearbyFacility, error) {
	candidates, err := s.store.FacilitiesInBounds(ctx, geo.RadiusBounds(lat, lng, radiusMiles))
	if err != nil {
		return nil, eris.Wrap(err, "basis: nearby facilities")
	}

	nearby := make([]model.NearbyFacility, 0, len(candidates))
	for _, f := range candidates {
		d := geo.HaversineMiles(lat, lng, f.Lat, f.Lng)
		if d <= radiusMiles {
			nearby = append(nearby, model.NearbyFacility{Facility: f, DistanceMiles: d})
		}
	}
	sort.Slice(nearby, func(i, j int) bool {
		if nearby[i].DistanceMiles != nearby[j].DistanceMiles {
			return nearby[i].DistanceMiles < nearby[j].DistanceMiles
		}
		return nearby[i].ID < nearby[j].ID
	})
	return nearby, nil
}

// NearbyByZip resolves a ZIP to its centroid and searches around it.
func (s *Service) NearbyByZip(ctx context.Context, zip string, radiusMiles float64) ([]model.NearbyFacility, error) {
	c, err := s.ResolveZip(ctx, zip)
	if err != nil {
		return nil, err
	}
	return s.NearbyFacilities(ctx, c.Lat, c.Lng, radiusMiles)
}

// AddFacility validates and stores a new, unverified facility.
func (s *Service) AddFacility(ctx context.Context, nf model.NewFacility) (*model.Facility, error) {
	if err := nf.Validate(); err != nil {
		return nil, eris.Wrap(err, "basis: add facility")
	}
	f, err := s.store.CreateFacility(ctx, nf)
	if err != nil {
		return nil, eris.Wrap(err, "basis: add facility")
	}
	zap.L().Info("facility created",
		zap.String("facility_id", f.ID),
		zap.String("name", f.Name),
		zap.String("state", f.State))
	return f, nil
}

// Submit validates and stores a basis report. Values outside the
// plausible range are rejected with ErrOutlierUnconfirmed unless
// confirmed is set; a confirmed outlier is stored as-is.
func (s *Service) Submit(ctx context.Context, nr model.NewBasisReport, confirmed bool) (*model.BasisReport, error) {
	if err := nr.Validate(); err != nil {
		return nil, eris.Wrap(err, "basis: submit report")
	}
	if model.IsOutlierBasis(nr.BasisCents) && !confirmed {
		return nil, ErrOutlierUnconfirmed
	}
	r, err := s.store.CreateBasisReport(ctx, nr)
	if err != nil {
		return nil, eris.Wrap(err, "basis: submit report")
	}
	zap.L().Info("basis report submitted",
		zap.String("facility_id", r.FacilityID),
		zap.String("commodity", string(r.Commodity)),
		zap.String("futures_month", string(r.FuturesMonth)),
		zap.Int("basis_cents", r.BasisCents))
	return r, nil
}

// CurrentBasis computes the median basis across the recent window for
// one facility, commodity, and futures month. Returns nil when no
// reports fall inside the window.
func (s *Service) CurrentBasis(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) (*model.CurrentBasis, error) {
	now := s.clock.Now()
	reports, err := s.store.ReportsSince(ctx, facilityID, c, m, now.Add(-s.windows.BasisWindow))
	if err != nil {
		return nil, eris.Wrap(err, "basis: current basis")
	}
	if len(reports) == 0 {
		return nil, nil
	}

	values := make([]int, 0, len(reports))
	var last time.Time
	for _, r := range reports {
		values = append(values, r.BasisCents)
		if r.ObservedAt.After(last) {
			last = r.ObservedAt
		}
	}
	return &model.CurrentBasis{
		MedianBasis: Median(values),
		ReportCount: len(reports),
		IsStale:     IsStale(last, now, s.windows.StaleAfter),
		LastUpdated: last,
	}, nil
}

// Trend returns daily median buckets over the trend window, ascending by
// day. Days with no reports are omitted.
func (s *Service) Trend(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) ([]model.TrendPoint, error) {
	now := s.clock.Now()
	reports, err := s.store.ReportsSince(ctx, facilityID, c, m, now.Add(-s.windows.TrendWindow))
	if err != nil {
		return nil, eris.Wrap(err, "basis: trend")
	}
	return BucketByDay(reports, s.windows.Loc), nil
}

// Stats returns the 7-day report count and most recent report time for
// one facility, commodity, and futures month.
func (s *Service) Stats(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) (*model.FacilityStats, error) {
	now := s.clock.Now()
	reports, err := s.store.ReportsSince(ctx, facilityID, c, m, now.Add(-s.windows.StatsWindow))
	if err != nil {
		return nil, eris.Wrap(err, "basis: stats")
	}
	last, err := s.store.LastReportAt(ctx, facilityID, c, m)
	if err != nil {
		return nil, eris.Wrap(err, "basis: stats")
	}
	return &model.FacilityStats{
		Reports7d:    len(reports),
		LastReportAt: last,
	}, nil
}

// Summary is the trends-view payload: current basis, trend series, and
// stats for one facility/commodity/month, fetched concurrently.
type Summary struct {
	Facility *model.Facility      `json:"facility"`
	Current  *model.CurrentBasis  `json:"current,omitempty"`
	Trend    []model.TrendPoint   `json:"trend"`
	Stats    *model.FacilityStats `json:"stats"`
}

// Summarize fans out the three aggregate reads plus the facility fetch.
// The reads are independent and unordered; the first error cancels the
// rest.
func (s *Service) Summarize(ctx context.Context, facilityID string, c model.Commodity, m model.FuturesMonth) (*Summary, error) {
	var out Summary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		f, err := s.store.GetFacility(gctx, facilityID)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrFacilityNotFound
		}
		out.Facility = f
		return nil
	})
	g.Go(func() error {
		cur, err := s.CurrentBasis(gctx, facilityID, c, m)
		out.Current = cur
		return err
	})
	g.Go(func() error {
		trend, err := s.Trend(gctx, facilityID, c, m)
		out.Trend = trend
		return err
	})
	g.Go(func() error {
		stats, err := s.Stats(gctx, facilityID, c, m)
		out.Stats = stats
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "basis: summarize")
	}
	return &out, nil
}

// SaveFacility bookmarks a facility for a user. Saving twice is a no-op.
func (s *Service) SaveFacility(ctx context.Context, userID, facilityID string) error {
	if err := s.store.SaveFacility(ctx, userID, facilityID); err != nil {
		return eris.Wrap(err, "basis: save facility")
	}
	return nil
}

// IsFacilitySaved reports whether a user has bookmarked the facility.
func (s *Service) IsFacilitySaved(ctx context.Context, userID, facilityID string) (bool, error) {
	saved, err := s.store.IsFacilitySaved(ctx, userID, facilityID)
	if err != nil {
		return false, eris.Wrap(err, "basis: check saved facility")
	}
	return saved, nil
}

// SavedFacilities lists a user's bookmarked facilities.
func (s *Service) SavedFacilities(ctx context.Context, userID string) ([]model.Facility, error) {
	facilities, err := s.store.ListSavedFacilities(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "basis: list saved facilities")
	}
	return facilities, nil
}

// Facility fetches one facility by id, nil when absent.
func (s *Service) Facility(ctx context.Context, id string) (*model.Facility, error) {
	f, err := s.store.GetFacility(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "basis: get facility")
	}
	return f, nil
}
