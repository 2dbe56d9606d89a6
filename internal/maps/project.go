package maps

import (
	"fmt"
	"image"
	"math"

	"github.com/i474232898/nearcast/internal/geo"
)

// mercatorY maps a latitude in radians onto the Mercator y axis.
func mercatorY(lat float64) float64 {
	return math.Log(math.Tan(lat/2 + math.Pi/4))
}

// Project converts a position to pixel coordinates within a single slice of
// the series. Longitude is scaled linearly between the reference points;
// latitude is interpolated in Mercator space.
func Project(r *RasterSeries, refs RefPoints, pos geo.Position) (image.Point, error) {
	ref1, ref2 := refs[0], refs[1]

	lon1, lon2 := ref1.Position.LonRad(), ref2.Position.LonRad()
	scaleX := float64(ref2.Pixel.X-ref1.Pixel.X) / (lon2 - lon1)
	x := math.Round(float64(ref1.Pixel.X) + (pos.LonRad()-lon1)*scaleX)

	my1, my2 := mercatorY(ref1.Position.LatRad()), mercatorY(ref2.Position.LatRad())
	scaleY := float64(ref2.Pixel.Y-ref1.Pixel.Y) / (my2 - my1)
	y := math.Round(float64(ref1.Pixel.Y) + (mercatorY(pos.LatRad())-my1)*scaleY)

	if math.IsNaN(x) || math.IsNaN(y) ||
		x < 0 || x >= float64(r.SliceWidth()) ||
		y < 0 || y >= float64(r.Height()) {
		return image.Point{}, fmt.Errorf("%w: (%v, %v)", ErrOutOfBoundCoords, x, y)
	}

	return image.Pt(int(x), int(y)), nil
}
