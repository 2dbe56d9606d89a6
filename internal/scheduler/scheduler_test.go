package scheduler

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/nearcast/internal/maps"
	"github.com/i474232898/nearcast/internal/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeFetcher struct {
	mu    sync.Mutex
	clock *clock
	calls map[maps.Kind]int
	fail  bool
}

func newFakeFetcher(c *clock) *fakeFetcher {
	return &fakeFetcher{clock: c, calls: make(map[maps.Kind]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, fam maps.Family) (*maps.RasterSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls[fam.Kind]++
	fail := f.fail
	f.mu.Unlock()

	if fail {
		return nil, maps.ErrFetchFailed
	}
	now := f.clock.Now()
	img := image.NewNRGBA(image.Rect(0, 0, 2*fam.SliceCount, 2))
	return maps.NewRasterSeries(img, fam.SliceCount, fam.SliceInterval, now, now)
}

func (f *fakeFetcher) Calls(kind maps.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeFetcher) SetFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func setup(t *testing.T) (*clock, *store.RasterStore, *fakeFetcher, *Scheduler) {
	t.Helper()
	c := &clock{now: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
	st := store.NewRasterStore(maps.Families(), store.WithClock(c.Now))
	f := newFakeFetcher(c)
	return c, st, f, New(maps.Families(), time.Minute, time.Second, st, f)
}

func TestRefreshAllPopulatesEmptyStore(t *testing.T) {
	_, st, f, s := setup(t)

	s.RefreshAll(context.Background())

	for _, fam := range maps.Families() {
		assert.Equal(t, 1, f.Calls(fam.Kind))
		r, err := st.Get(fam.Kind)
		require.NoError(t, err)
		assert.Equal(t, fam.SliceCount, r.SliceCount)
	}
}

func TestRefreshAllOnlyFetchesDueMaps(t *testing.T) {
	c, _, f, s := setup(t)
	s.RefreshAll(context.Background())

	c.Advance(30 * time.Minute)
	s.RefreshAll(context.Background())
	assert.Equal(t, 1, f.Calls(maps.KindPollen))
	assert.Equal(t, 1, f.Calls(maps.KindUVIndex))

	// The hourly pollen map is due, the daily UV map is not.
	c.Advance(31 * time.Minute)
	s.RefreshAll(context.Background())
	assert.Equal(t, 2, f.Calls(maps.KindPollen))
	assert.Equal(t, 1, f.Calls(maps.KindUVIndex))
}

func TestFailedRefreshKeepsUsableMap(t *testing.T) {
	c, st, f, s := setup(t)
	s.RefreshAll(context.Background())
	before, err := st.Get(maps.KindPollen)
	require.NoError(t, err)

	f.SetFail(true)
	c.Advance(2 * time.Hour)
	s.RefreshAll(context.Background())

	after, err := st.Get(maps.KindPollen)
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, 2, f.Calls(maps.KindPollen))
}

func TestFailedRefreshDropsStaleMap(t *testing.T) {
	c, st, f, s := setup(t)
	s.RefreshAll(context.Background())

	f.SetFail(true)
	c.Advance(25 * time.Hour)
	s.RefreshAll(context.Background())

	_, err := st.Get(maps.KindPollen)
	assert.True(t, errors.Is(err, maps.ErrNoDataYet))

	// The five day UV map outlives a failed fetch.
	_, err = st.Get(maps.KindUVIndex)
	assert.NoError(t, err)
}

func TestZeroFetchTimeoutUsesDefault(t *testing.T) {
	c := &clock{now: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
	st := store.NewRasterStore(maps.Families(), store.WithClock(c.Now))
	s := New(maps.Families(), time.Minute, 0, st, newFakeFetcher(c))
	assert.Equal(t, defaultFetchTimeout, s.fetchTimeout)

	s.RefreshAll(context.Background())

	_, err := st.Get(maps.KindPollen)
	assert.NoError(t, err)
}

func TestStartRunsImmediately(t *testing.T) {
	_, st, f, s := setup(t)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		_, err := st.Get(maps.KindUVIndex)
		return err == nil && f.Calls(maps.KindPollen) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartWithoutFamilies(t *testing.T) {
	s := New(nil, time.Minute, time.Second, store.NewRasterStore(nil), newFakeFetcher(&clock{}))
	assert.NoError(t, s.Start())
	s.Stop()
}
