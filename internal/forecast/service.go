package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/nearcast/internal/cache"
	"github.com/i474232898/nearcast/internal/geo"
	"github.com/i474232898/nearcast/internal/log"
	"github.com/i474232898/nearcast/internal/maps"
	"github.com/i474232898/nearcast/internal/metrics"
)

var (
	// ErrUnsupportedMetric is returned for metrics a call cannot serve.
	ErrUnsupportedMetric = errors.New("unsupported metric")

	// ErrNoPositionFound is returned when an address cannot be geocoded.
	ErrNoPositionFound = errors.New("no geocoded position could be found")

	errNoProvider = errors.New("no provider configured")
)

// mapFamilies maps the map-backed metrics onto their raster families.
var mapFamilies = map[Metric]maps.Family{
	MetricPollen: maps.PollenFamily,
	MetricUVI:    maps.UVIndexFamily,
}

// Service answers forecast queries from the raster cache and the providers.
type Service struct {
	rasters       RasterSource
	airQuality    AirQualityProvider
	precipitation PrecipitationProvider
	geocoder      Geocoder

	seriesCache  cache.Cache
	seriesTTL    time.Duration
	geocodeCache cache.Cache

	sampleSize int
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSeriesCache memoizes AQI and PAQI series for ttl.
func WithSeriesCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.seriesCache = c
		s.seriesTTL = ttl
	}
}

// WithGeocodeCache memoizes geocoded addresses.
func WithGeocodeCache(c cache.Cache) Option {
	return func(s *Service) {
		s.geocodeCache = c
	}
}

// WithSampleSize sets the edge length of the sampled map area.
func WithSampleSize(n int) Option {
	return func(s *Service) {
		s.sampleSize = n
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new Service. Any provider may be nil, in which case
// its metrics are unavailable.
func NewService(rasters RasterSource, airQuality AirQualityProvider, precipitation PrecipitationProvider, geocoder Geocoder, opts ...Option) *Service {
	s := &Service{
		rasters:       rasters,
		airQuality:    airQuality,
		precipitation: precipitation,
		geocoder:      geocoder,
		seriesCache:   cache.NewMemoryCache(1000),
		seriesTTL:     30 * time.Minute,
		geocodeCache:  cache.NewMemoryCache(100),
		sampleSize:    maps.DefaultSampleSize,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) rasterFor(metric Metric) (maps.Family, *maps.RasterSeries, error) {
	fam, ok := mapFamilies[metric]
	if !ok {
		return maps.Family{}, nil, fmt.Errorf("%w: %s has no map", ErrUnsupportedMetric, metric)
	}
	series, err := s.rasters.Get(fam.Kind)
	if err != nil {
		return maps.Family{}, nil, err
	}
	return fam, series, nil
}

// Sample samples the pollen or UV index map at pos, one sample per slice.
func (s *Service) Sample(metric Metric, pos geo.Position) ([]maps.Sample, error) {
	fam, series, err := s.rasterFor(metric)
	if err != nil {
		return nil, err
	}
	pt, err := maps.Project(series, fam.RefPoints, pos)
	if err != nil {
		return nil, err
	}
	return maps.SampleSeries(series, pt, s.sampleSize)
}

// MarkImage renders the current slice of the metric's map with pos marked,
// encoded as PNG.
func (s *Service) MarkImage(metric Metric, pos geo.Position) ([]byte, error) {
	fam, series, err := s.rasterFor(metric)
	if err != nil {
		return nil, err
	}
	pt, err := maps.Project(series, fam.RefPoints, pos)
	if err != nil {
		return nil, err
	}
	img, err := maps.MarkCurrentSlice(series, pt, s.now())
	if err != nil {
		return nil, err
	}
	return maps.EncodePNG(img)
}

// CombinedSample merges the pollen samples and AQI items at pos into the PAQI series.
func (s *Service) CombinedSample(ctx context.Context, pos geo.Position) ([]CombinedSample, error) {
	key := "paqi:" + pos.Key()
	var cached []CombinedSample
	if s.cacheGet(ctx, s.seriesCache, "paqi", key, &cached) {
		return RecentCombined(cached, s.now().Add(-Retention)), nil
	}

	pollen, err := s.Sample(MetricPollen, pos)
	if err != nil {
		return nil, fmt.Errorf("pollen: %w", err)
	}
	aqi, err := s.AirQuality(ctx, pos, MetricAQI)
	if err != nil {
		return nil, fmt.Errorf("AQI: %w", err)
	}

	combined, err := Merge(pollen, aqi, s.now())
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, s.seriesCache, key, combined, s.seriesTTL)
	return combined, nil
}

// AirQuality returns the recent AQI, NO2, O3 or PM10 items at pos.
func (s *Service) AirQuality(ctx context.Context, pos geo.Position, metric Metric) ([]Item, error) {
	switch metric {
	case MetricAQI, MetricNO2, MetricO3, MetricPM10:
	default:
		return nil, fmt.Errorf("%w: %s is not an air quality metric", ErrUnsupportedMetric, metric)
	}
	if s.airQuality == nil {
		return nil, errNoProvider
	}

	key := "aq:" + string(metric) + ":" + pos.Key()
	var items []Item
	if !s.cacheGet(ctx, s.seriesCache, "air_quality", key, &items) {
		fetched, err := s.airQuality.FetchAirQuality(ctx, pos, metric)
		if err != nil {
			return nil, err
		}
		items = fetched
		s.cacheSet(ctx, s.seriesCache, key, items, s.seriesTTL)
	}
	return RecentItems(items, s.now().Add(-Retention)), nil
}

// Precipitation returns the short-term precipitation items at pos.
func (s *Service) Precipitation(ctx context.Context, pos geo.Position) ([]Item, error) {
	if s.precipitation == nil {
		return nil, errNoProvider
	}
	return s.precipitation.FetchPrecipitation(ctx, pos)
}

// ResolveAddress geocodes address, memoizing successful lookups.
func (s *Service) ResolveAddress(ctx context.Context, address string) (geo.Position, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Position{}, ErrNoPositionFound
	}
	if s.geocoder == nil {
		return geo.Position{}, errNoProvider
	}

	key := "geo:" + strings.ToLower(address)
	var pos geo.Position
	if s.cacheGet(ctx, s.geocodeCache, "geocode", key, &pos) {
		return pos, nil
	}

	log.Infow("geocoding address", "address", address)
	pos, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return geo.Position{}, err
	}
	s.cacheSet(ctx, s.geocodeCache, key, pos, 0)
	return pos, nil
}

// Forecast computes the requested metrics for pos concurrently. Metrics
// that fail are logged and left out.
func (s *Service) Forecast(ctx context.Context, pos geo.Position, requested []Metric) Forecast {
	fc := newForecast(pos, s.now())

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, m := range ExpandMetrics(requested) {
		m := m
		g.Go(func() error {
			err := s.fill(ctx, &fc, &mu, pos, m)
			if err != nil {
				log.Warnw("metric omitted from forecast", "metric", m, "position", pos.Key(), "error", err)
				metricFailures(m)
			}
			return nil
		})
	}
	_ = g.Wait()

	return fc
}

func (s *Service) fill(ctx context.Context, fc *Forecast, mu *sync.Mutex, pos geo.Position, m Metric) error {
	switch m {
	case MetricAQI, MetricNO2, MetricO3, MetricPM10:
		items, err := s.AirQuality(ctx, pos, m)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		switch m {
		case MetricAQI:
			fc.AQI = items
		case MetricNO2:
			fc.NO2 = items
		case MetricO3:
			fc.O3 = items
		case MetricPM10:
			fc.PM10 = items
		}
	case MetricPAQI:
		combined, err := s.CombinedSample(ctx, pos)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		fc.PAQI = combined
	case MetricPollen, MetricUVI:
		samples, err := s.Sample(m, pos)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if m == MetricPollen {
			fc.Pollen = samples
		} else {
			fc.UVI = samples
		}
	case MetricPrecipitation:
		items, err := s.Precipitation(ctx, pos)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		fc.Precipitation = items
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMetric, m)
	}
	return nil
}

func (s *Service) cacheGet(ctx context.Context, c cache.Cache, namespace, key string, dst any) bool {
	if c == nil {
		return false
	}
	err := c.Get(ctx, key, dst)
	if err == nil {
		metrics.CacheHitsTotal.WithLabelValues(namespace).Inc()
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warnw("cache read failed", "key", key, "error", err)
	}
	metrics.CacheMissesTotal.WithLabelValues(namespace).Inc()
	return false
}

func (s *Service) cacheSet(ctx context.Context, c cache.Cache, key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.Warnw("cache write failed", "key", key, "error", err)
	}
}

func metricFailures(m Metric) {
	metrics.MetricFailuresTotal.WithLabelValues(string(m)).Inc()
}
