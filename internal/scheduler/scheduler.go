package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/nearcast/internal/log"
	"github.com/i474232898/nearcast/internal/maps"
	"github.com/i474232898/nearcast/internal/metrics"
)

const defaultFetchTimeout = 30 * time.Second

// RasterFetcher retrieves a fresh raster series for a family.
type RasterFetcher interface {
	Fetch(ctx context.Context, fam maps.Family) (*maps.RasterSeries, error)
}

// RasterCache is the part of the raster store the scheduler drives.
type RasterCache interface {
	NeedsRefresh(kind maps.Kind) bool
	IsStale(kind maps.Kind) bool
	Set(kind maps.Kind, r *maps.RasterSeries)
	Age(kind maps.Kind) (time.Duration, bool)
}

// Scheduler periodically refreshes the cached raster maps.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	store        RasterCache
	fetcher      RasterFetcher
	families     []maps.Family
	interval     time.Duration
	fetchTimeout time.Duration
}

// New creates a new Scheduler checking every family on each tick. A
// non-positive fetchTimeout falls back to 30 seconds.
func New(families []maps.Family, interval, fetchTimeout time.Duration, store RasterCache, fetcher RasterFetcher) *Scheduler {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:    s,
		store:        store,
		fetcher:      fetcher,
		families:     families,
		interval:     interval,
		fetchTimeout: fetchTimeout,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.families) == 0 {
		log.Warnw("scheduler: no raster families configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.RefreshAll(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RefreshAll checks every family once and refetches those that are due.
// Families are handled concurrently and independently.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	log.Debugw("scheduler: checking raster maps")

	var wg sync.WaitGroup
	for _, fam := range s.families {
		fam := fam
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.refresh(ctx, fam)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) refresh(ctx context.Context, fam maps.Family) {
	kind := string(fam.Kind)
	defer s.observe(fam.Kind)

	if !s.store.NeedsRefresh(fam.Kind) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	log.Infow("scheduler: refreshing raster map", "kind", kind)
	r, err := s.fetcher.Fetch(ctx, fam)
	if err != nil {
		metrics.RasterRefreshTotal.WithLabelValues(kind, "error").Inc()
		log.Errorw("scheduler: raster refresh failed", "kind", kind, "stale", s.store.IsStale(fam.Kind), "error", err)
		s.store.Set(fam.Kind, nil)
		return
	}

	metrics.RasterRefreshTotal.WithLabelValues(kind, "ok").Inc()
	log.Infow("scheduler: raster map refreshed",
		"kind", kind,
		"series_start", r.SeriesStart,
		"fetched_at", r.FetchedAt,
		"slices", r.SliceCount,
	)
	s.store.Set(fam.Kind, r)
}

func (s *Scheduler) observe(kind maps.Kind) {
	stale := 0.0
	if s.store.IsStale(kind) {
		stale = 1
	}
	metrics.RasterStale.WithLabelValues(string(kind)).Set(stale)

	if age, ok := s.store.Age(kind); ok {
		metrics.RasterAgeSeconds.WithLabelValues(string(kind)).Set(age.Seconds())
	} else {
		metrics.RasterAgeSeconds.DeleteLabelValues(string(kind))
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
