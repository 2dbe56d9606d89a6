package maps

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"time"
)

// crosshairColor is composited over the map to mark a position.
var crosshairColor = color.NRGBA{A: 0x70}

// MarkCurrentSlice copies the slice covering now and draws a one pixel wide
// crosshair through pt. The series itself is left untouched.
func MarkCurrentSlice(r *RasterSeries, pt image.Point, now time.Time) (*image.NRGBA, error) {
	k, err := r.MapAt(now)
	if err != nil {
		return nil, err
	}
	if !pt.In(image.Rect(0, 0, r.SliceWidth(), r.Height())) {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrOutOfBoundCoords, pt.X, pt.Y)
	}

	slice := r.SliceBounds(k)
	out := image.NewNRGBA(image.Rect(0, 0, slice.Dx(), slice.Dy()))
	draw.Draw(out, out.Bounds(), r.Image, slice.Min, draw.Src)

	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	ink := image.NewUniform(crosshairColor)
	// The vertical line skips the centre so every crosshair pixel is inked once.
	for _, line := range []image.Rectangle{
		image.Rect(0, pt.Y, w, pt.Y+1),
		image.Rect(pt.X, 0, pt.X+1, pt.Y),
		image.Rect(pt.X, pt.Y+1, pt.X+1, h),
	} {
		draw.Draw(out, line, ink, image.Point{}, draw.Over)
	}

	return out, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
