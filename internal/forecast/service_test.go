package forecast

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/nearcast/internal/geo"
	"github.com/i474232898/nearcast/internal/maps"
)

var (
	eindhoven = geo.New(51.44, 5.47)
	berlin    = geo.New(52.52, 13.40)
)

type stubRasters map[maps.Kind]*maps.RasterSeries

func (s stubRasters) Get(kind maps.Kind) (*maps.RasterSeries, error) {
	r, ok := s[kind]
	if !ok {
		return nil, maps.ErrNoDataYet
	}
	return r, nil
}

type fakeAirQuality struct {
	mu    sync.Mutex
	calls int
	items []Item
	err   error
}

func (f *fakeAirQuality) Name() string { return "fake-aq" }

func (f *fakeAirQuality) FetchAirQuality(_ context.Context, _ geo.Position, _ Metric) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.err
}

func (f *fakeAirQuality) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePrecipitation struct {
	items []Item
	err   error
}

func (f *fakePrecipitation) Name() string { return "fake-precipitation" }

func (f *fakePrecipitation) FetchPrecipitation(context.Context, geo.Position) ([]Item, error) {
	return f.items, f.err
}

type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	pos   geo.Position
	err   error
}

func (f *fakeGeocoder) Geocode(context.Context, string) (geo.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pos, f.err
}

// uniformRaster builds a series of count 820x988 slices in the color of score.
func uniformRaster(t *testing.T, fam maps.Family, score int) *maps.RasterSeries {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 820*fam.SliceCount, 988))
	c := maps.LegendColor(score)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	r, err := maps.NewRasterSeries(img, fam.SliceCount, fam.SliceInterval, t0, t0)
	require.NoError(t, err)
	return r
}

func hourlyItems(n int, value float64) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{Time: t0.Add(time.Duration(i) * time.Hour), Value: value}
	}
	return out
}

func newTestService(t *testing.T, aq AirQualityProvider, precip PrecipitationProvider, gc Geocoder) *Service {
	t.Helper()
	rasters := stubRasters{
		maps.KindPollen:  uniformRaster(t, maps.PollenFamily, 4),
		maps.KindUVIndex: uniformRaster(t, maps.UVIndexFamily, 2),
	}
	now := func() time.Time { return t0.Add(30 * time.Minute) }
	return NewService(rasters, aq, precip, gc, WithClock(now))
}

func TestSampleReturnsOneScorePerSlice(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	samples, err := svc.Sample(MetricPollen, eindhoven)
	require.NoError(t, err)
	require.Len(t, samples, 24)
	for i, s := range samples {
		assert.Equal(t, 4, s.Score)
		assert.Equal(t, t0.Add(time.Duration(i)*time.Hour), s.Time)
	}

	samples, err = svc.Sample(MetricUVI, eindhoven)
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.Equal(t, 2, samples[4].Score)
	assert.Equal(t, t0.Add(4*24*time.Hour), samples[4].Time)
}

func TestSampleErrors(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	_, err := svc.Sample(MetricAQI, eindhoven)
	assert.ErrorIs(t, err, ErrUnsupportedMetric)

	_, err = svc.Sample(MetricPollen, berlin)
	assert.ErrorIs(t, err, maps.ErrOutOfBoundCoords)

	empty := NewService(stubRasters{}, nil, nil, nil)
	_, err = empty.Sample(MetricPollen, eindhoven)
	assert.ErrorIs(t, err, maps.ErrNoDataYet)
}

func TestMarkImageEncodesCurrentSlice(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	b, err := svc.MarkImage(MetricPollen, eindhoven)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 820, 988), img.Bounds())

	_, err = svc.MarkImage(MetricPrecipitation, eindhoven)
	assert.ErrorIs(t, err, ErrUnsupportedMetric)
}

func TestMarkImagePastLastSlice(t *testing.T) {
	rasters := stubRasters{maps.KindPollen: uniformRaster(t, maps.PollenFamily, 4)}
	svc := NewService(rasters, nil, nil, nil, WithClock(func() time.Time { return t0.Add(25 * time.Hour) }))

	_, err := svc.MarkImage(MetricPollen, eindhoven)
	assert.ErrorIs(t, err, maps.ErrOutOfBoundOffset)
}

func TestCombinedSample(t *testing.T) {
	aq := &fakeAirQuality{items: hourlyItems(24, 5.5)}
	svc := newTestService(t, aq, nil, nil)

	combined, err := svc.CombinedSample(context.Background(), eindhoven)
	require.NoError(t, err)
	require.Len(t, combined, 24)
	assert.Equal(t, 5.5, combined[0].Value)
	assert.True(t, combined[0].Time.Equal(t0))

	again, err := svc.CombinedSample(context.Background(), eindhoven)
	require.NoError(t, err)
	require.Len(t, again, 24)
	assert.Equal(t, combined[23].Value, again[23].Value)
	assert.Equal(t, 1, aq.callCount())
}

func TestCombinedSampleCachedSeriesAgesOut(t *testing.T) {
	var mu sync.Mutex
	now := t0.Add(59 * time.Minute)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	rasters := stubRasters{maps.KindPollen: uniformRaster(t, maps.PollenFamily, 4)}
	aq := &fakeAirQuality{items: hourlyItems(24, 5.5)}
	svc := NewService(rasters, aq, nil, nil, WithClock(clock))

	combined, err := svc.CombinedSample(context.Background(), eindhoven)
	require.NoError(t, err)
	require.Len(t, combined, 24)
	assert.True(t, combined[0].Time.Equal(t0))

	mu.Lock()
	now = now.Add(29 * time.Minute)
	mu.Unlock()

	again, err := svc.CombinedSample(context.Background(), eindhoven)
	require.NoError(t, err)
	require.Len(t, again, 23)
	assert.True(t, again[0].Time.Equal(t0.Add(time.Hour)))
	assert.Equal(t, 1, aq.callCount())

	items, err := svc.AirQuality(context.Background(), eindhoven, MetricAQI)
	require.NoError(t, err)
	assert.True(t, items[0].Time.Equal(again[0].Time))
}

func TestCombinedSampleWithoutAQI(t *testing.T) {
	aq := &fakeAirQuality{}
	svc := newTestService(t, aq, nil, nil)

	_, err := svc.CombinedSample(context.Background(), eindhoven)
	assert.ErrorIs(t, err, ErrNoAQISamples)

	aq.err = errors.New("upstream down")
	svc = newTestService(t, aq, nil, nil)
	_, err = svc.CombinedSample(context.Background(), eindhoven)
	assert.EqualError(t, err, "AQI: upstream down")
}

func TestAirQualityDropsOldItems(t *testing.T) {
	items := append([]Item{{Time: t0.Add(-2 * time.Hour), Value: 9}}, hourlyItems(3, 1)...)
	svc := newTestService(t, &fakeAirQuality{items: items}, nil, nil)

	got, err := svc.AirQuality(context.Background(), eindhoven, MetricNO2)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.AirQuality(context.Background(), eindhoven, MetricPollen)
	assert.ErrorIs(t, err, ErrUnsupportedMetric)
}

func TestForecastOmitsFailingMetrics(t *testing.T) {
	aq := &fakeAirQuality{items: hourlyItems(24, 3)}
	precip := &fakePrecipitation{err: errors.New("feed unavailable")}
	rasters := stubRasters{maps.KindPollen: uniformRaster(t, maps.PollenFamily, 6)}
	svc := NewService(rasters, aq, precip, nil, WithClock(func() time.Time { return t0 }))

	fc := svc.Forecast(context.Background(), eindhoven, []Metric{MetricAll})

	assert.Equal(t, eindhoven.Lat, fc.Lat)
	assert.Equal(t, t0.Unix(), fc.Time)
	assert.Len(t, fc.Pollen, 24)
	assert.Len(t, fc.AQI, 24)
	assert.Len(t, fc.NO2, 24)
	assert.Len(t, fc.O3, 24)
	assert.Len(t, fc.PM10, 24)
	require.Len(t, fc.PAQI, 24)
	assert.Equal(t, 6.0, fc.PAQI[0].Value)
	assert.Empty(t, fc.Precipitation)
	assert.Empty(t, fc.UVI)
}

func TestForecastOnlyRequestedMetrics(t *testing.T) {
	precip := &fakePrecipitation{items: hourlyItems(2, 0.4)}
	svc := newTestService(t, nil, precip, nil)

	fc := svc.Forecast(context.Background(), eindhoven, []Metric{MetricPrecipitation, MetricUVI})

	assert.Len(t, fc.Precipitation, 2)
	assert.Len(t, fc.UVI, 5)
	assert.Empty(t, fc.Pollen)
	assert.Empty(t, fc.AQI)
}

func TestResolveAddressMemoizes(t *testing.T) {
	gc := &fakeGeocoder{pos: eindhoven}
	svc := newTestService(t, nil, nil, gc)

	pos, err := svc.ResolveAddress(context.Background(), "Eindhoven")
	require.NoError(t, err)
	assert.Equal(t, eindhoven, pos)

	pos, err = svc.ResolveAddress(context.Background(), "  eindhoven ")
	require.NoError(t, err)
	assert.Equal(t, eindhoven, pos)
	assert.Equal(t, 1, gc.calls)

	_, err = svc.ResolveAddress(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNoPositionFound)
}

func TestResolveAddressDoesNotCacheFailures(t *testing.T) {
	gc := &fakeGeocoder{err: ErrNoPositionFound}
	svc := newTestService(t, nil, nil, gc)

	_, err := svc.ResolveAddress(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNoPositionFound)

	gc.err = nil
	gc.pos = eindhoven
	pos, err := svc.ResolveAddress(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, eindhoven, pos)
	assert.Equal(t, 2, gc.calls)
}
