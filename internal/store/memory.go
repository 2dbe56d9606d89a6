package store

import (
	"sync"
	"time"

	"github.com/i474232898/nearcast/internal/maps"
)

// RasterStore is a concurrency-safe in-memory cache of the most recent
// raster series per kind. It is shared by the refresh scheduler and all
// request handlers.
type RasterStore struct {
	mu sync.Mutex

	// key: raster kind, value: most recent series (never mutated once stored)
	series map[maps.Kind]*maps.RasterSeries

	// refresh configuration per kind
	refresh map[maps.Kind]time.Duration

	now func() time.Time
}

// Option configures a RasterStore.
type Option func(*RasterStore)

// WithClock replaces the wall clock used for refresh and staleness checks.
func WithClock(now func() time.Time) Option {
	return func(s *RasterStore) {
		s.now = now
	}
}

// NewRasterStore creates an empty store for the given families.
func NewRasterStore(families []maps.Family, opts ...Option) *RasterStore {
	s := &RasterStore{
		series:  make(map[maps.Kind]*maps.RasterSeries, len(families)),
		refresh: make(map[maps.Kind]time.Duration, len(families)),
		now:     time.Now,
	}
	for _, f := range families {
		s.refresh[f.Kind] = f.RefreshInterval
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NeedsRefresh reports whether kind is absent or older than its refresh interval.
func (s *RasterStore) NeedsRefresh(kind maps.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[kind]
	if !ok {
		return true
	}
	return r.NeedsRefresh(s.now(), s.refresh[kind])
}

// IsStale reports whether the stored series of kind covers only elapsed time.
// An empty slot is not stale.
func (s *RasterStore) IsStale(kind maps.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[kind]
	return ok && r.IsStale(s.now())
}

// Set commits the result of a fetch. A nil series marks a failed fetch and
// only evicts the current series when it is stale.
func (s *RasterStore) Set(kind maps.Kind, r *maps.RasterSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r != nil {
		s.series[kind] = r
		return
	}
	if cur, ok := s.series[kind]; ok && cur.IsStale(s.now()) {
		delete(s.series, kind)
	}
}

// Get returns the current series of kind. The series is shared and must
// not be modified.
func (s *RasterStore) Get(kind maps.Kind) (*maps.RasterSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[kind]
	if !ok {
		return nil, maps.ErrNoDataYet
	}
	return r, nil
}

// Age returns how long ago the series of kind was fetched.
func (s *RasterStore) Age(kind maps.Kind) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[kind]
	if !ok {
		return 0, false
	}
	return s.now().Sub(r.FetchedAt), true
}
