package maps

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

// uniformSeries builds a strip of count 820x988 slices filled with c.
func uniformSeries(t *testing.T, count int, interval time.Duration, c color.NRGBA) *RasterSeries {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 820*count, 988))
	fill(img, img.Bounds(), c)
	r, err := NewRasterSeries(img, count, interval, testStart, testStart)
	require.NoError(t, err)
	return r
}

func fill(img *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}
