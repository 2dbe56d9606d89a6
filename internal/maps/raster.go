package maps

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/i474232898/nearcast/internal/geo"
)

// Kind identifies a raster family kept in the store.
type Kind string

const (
	KindPollen  Kind = "pollen"
	KindUVIndex Kind = "uvi"
)

// RefPoint anchors a geographic position to a pixel of a single slice.
type RefPoint struct {
	Position geo.Position
	Pixel    image.Point
}

// RefPoints is the pair of anchors a projection is derived from.
type RefPoints [2]RefPoint

// Family describes where a raster series comes from and how it is laid out.
type Family struct {
	Kind            Kind
	URL             string
	SliceCount      int
	SliceInterval   time.Duration
	RefreshInterval time.Duration
	RefPoints       RefPoints
}

// Span is the total time covered by all slices of the family.
func (f Family) Span() time.Duration {
	return time.Duration(f.SliceCount) * f.SliceInterval
}

// Reference points shared by the pollen and UV index sprites.
var netherlandsRefPoints = RefPoints{
	{Position: geo.New(51.44, 3.57), Pixel: image.Pt(84, 745)},  // Vlissingen
	{Position: geo.New(53.22, 6.57), Pixel: image.Pt(627, 163)}, // Groningen
}

// PollenFamily is the hourly pollen forecast sprite: 24 slices of one hour.
var PollenFamily = Family{
	Kind:            KindPollen,
	URL:             "https://image.buienradar.nl/2.0/image/sprite/WeatherMapPollenRadarHourlyNL?width=820&height=988&extension=png&renderBackground=False&renderBranding=False&renderText=False&history=0&forecast=24&skip=0",
	SliceCount:      24,
	SliceInterval:   time.Hour,
	RefreshInterval: time.Hour,
	RefPoints:       netherlandsRefPoints,
}

// UVIndexFamily is the daily UV index forecast sprite: 5 slices of one day.
var UVIndexFamily = Family{
	Kind:            KindUVIndex,
	URL:             "https://image.buienradar.nl/2.0/image/sprite/WeatherMapUVIndexNL?extension=png&width=820&height=988&renderText=False&renderBranding=False&renderBackground=False&history=0&forecast=5&skip=1",
	SliceCount:      5,
	SliceInterval:   24 * time.Hour,
	RefreshInterval: 24 * time.Hour,
	RefPoints:       netherlandsRefPoints,
}

// Families lists every raster family the service maintains.
func Families() []Family {
	return []Family{PollenFamily, UVIndexFamily}
}

// RasterSeries is a composite image holding SliceCount time slices side by
// side. A series is never modified after construction and may be shared.
type RasterSeries struct {
	Image         *image.NRGBA
	SliceCount    int
	SliceInterval time.Duration
	SeriesStart   time.Time
	FetchedAt     time.Time
}

// NewRasterSeries validates the strip geometry and normalizes the pixel
// buffer to NRGBA.
func NewRasterSeries(img image.Image, sliceCount int, interval time.Duration, seriesStart, fetchedAt time.Time) (*RasterSeries, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrDecodeFailed)
	}
	if sliceCount <= 0 || interval <= 0 {
		return nil, fmt.Errorf("%w: invalid slice layout %d x %s", ErrDecodeFailed, sliceCount, interval)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dx()%sliceCount != 0 {
		return nil, fmt.Errorf("%w: width %d not divisible into %d slices", ErrDecodeFailed, b.Dx(), sliceCount)
	}

	return &RasterSeries{
		Image:         toNRGBA(img),
		SliceCount:    sliceCount,
		SliceInterval: interval,
		SeriesStart:   seriesStart.UTC(),
		FetchedAt:     fetchedAt.UTC(),
	}, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Width is the width of the whole strip.
func (r *RasterSeries) Width() int { return r.Image.Bounds().Dx() }

// Height is the height of the strip and of every slice.
func (r *RasterSeries) Height() int { return r.Image.Bounds().Dy() }

// SliceWidth is the width of a single slice.
func (r *RasterSeries) SliceWidth() int { return r.Width() / r.SliceCount }

// Span is the total time covered by the slices.
func (r *RasterSeries) Span() time.Duration {
	return time.Duration(r.SliceCount) * r.SliceInterval
}

// SliceBounds returns the rectangle of slice k within the strip.
func (r *RasterSeries) SliceBounds(k int) image.Rectangle {
	w := r.SliceWidth()
	return image.Rect(k*w, 0, (k+1)*w, r.Height())
}

// SliceTime is the start of the time window of slice k.
func (r *RasterSeries) SliceTime(k int) time.Time {
	return r.SeriesStart.Add(time.Duration(k) * r.SliceInterval)
}

// MapAt returns the index of the slice whose window contains t. Instants
// before the first slice map to slice 0.
func (r *RasterSeries) MapAt(t time.Time) (int, error) {
	elapsed := t.Sub(r.SeriesStart)
	if elapsed < 0 {
		return 0, nil
	}
	k := int(elapsed / r.SliceInterval)
	if k >= r.SliceCount {
		return 0, fmt.Errorf("%w: %d >= %d", ErrOutOfBoundOffset, k, r.SliceCount)
	}
	return k, nil
}

// NeedsRefresh reports whether the series is older than refresh.
func (r *RasterSeries) NeedsRefresh(now time.Time, refresh time.Duration) bool {
	return now.Sub(r.FetchedAt) > refresh
}

// IsStale reports whether the nominal window of every slice has passed
// since the series was fetched.
func (r *RasterSeries) IsStale(now time.Time) bool {
	return now.Sub(r.FetchedAt) > r.Span()
}
