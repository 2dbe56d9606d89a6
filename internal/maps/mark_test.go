package maps

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkCurrentSlice(t *testing.T) {
	r := uniformSeries(t, 24, time.Hour, LegendColor(1))
	fill(r.Image, r.SliceBounds(2), LegendColor(5))
	pt := image.Pt(424, 742)

	img, err := MarkCurrentSlice(r, pt, testStart.Add(150*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 820, 988), img.Bounds())

	plain := LegendColor(5)
	assert.Equal(t, plain, img.NRGBAAt(0, 0))
	for _, p := range []image.Point{{0, pt.Y}, {819, pt.Y}, {pt.X, 0}, {pt.X, 987}, pt} {
		got := img.NRGBAAt(p.X, p.Y)
		assert.Less(t, got.G, plain.G, "pixel %v not darkened", p)
		assert.Equal(t, uint8(0xff), got.A)
	}
	// Every crosshair pixel is inked exactly once.
	assert.Equal(t, img.NRGBAAt(0, pt.Y), img.NRGBAAt(pt.X, pt.Y))

	// The cached series is untouched.
	assert.Equal(t, plain, r.Image.NRGBAAt(r.SliceBounds(2).Min.X+pt.X, pt.Y))
}

func TestMarkCurrentSliceOutOfBoundOffset(t *testing.T) {
	r := uniformSeries(t, 5, 24*time.Hour, LegendColor(1))

	_, err := MarkCurrentSlice(r, image.Pt(1, 1), testStart.Add(5*24*time.Hour+time.Minute))
	assert.ErrorIs(t, err, ErrOutOfBoundOffset)
}

func TestMarkCurrentSliceOutOfBoundCoords(t *testing.T) {
	r := uniformSeries(t, 5, 24*time.Hour, LegendColor(1))

	_, err := MarkCurrentSlice(r, image.Pt(900, 1), testStart)
	assert.ErrorIs(t, err, ErrOutOfBoundCoords)
}

func TestEncodePNG(t *testing.T) {
	r := uniformSeries(t, 1, time.Hour, LegendColor(2))

	data, err := EncodePNG(r.Image)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, r.Image.Bounds(), decoded.Bounds())
}
