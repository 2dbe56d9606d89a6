package maps

import (
	"fmt"
	"image"
	"time"

	"github.com/goccy/go-json"
)

// DefaultSampleSize is the edge length of the square area sampled per slice.
const DefaultSampleSize = 11

// Sample is the score found on one slice of a map.
type Sample struct {
	Time  time.Time
	Score int
}

// MarshalJSON encodes the time as seconds since the UNIX epoch.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time  int64 `json:"time"`
		Score int   `json:"score"`
	}{s.Time.Unix(), s.Score})
}

// SampleSeries samples every slice of the series around pt, a pixel
// position within a single slice, and returns one Sample per slice.
// size is the edge length of the sample area; values below 1 use
// DefaultSampleSize.
func SampleSeries(r *RasterSeries, pt image.Point, size int) ([]Sample, error) {
	if size < 1 {
		size = DefaultSampleSize
	}
	if !pt.In(image.Rect(0, 0, r.SliceWidth(), r.Height())) {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrOutOfBoundCoords, pt.X, pt.Y)
	}

	samples := make([]Sample, 0, r.SliceCount)
	for k := 0; k < r.SliceCount; k++ {
		slice := r.SliceBounds(k)
		area := sampleArea(slice, pt.Add(slice.Min), size)

		score, err := scoreArea(r.Image, area)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", k, err)
		}
		samples = append(samples, Sample{Time: r.SliceTime(k), Score: score})
	}

	return samples, nil
}

// sampleArea returns the size x size square around center, clamped to slice.
func sampleArea(slice image.Rectangle, center image.Point, size int) image.Rectangle {
	half := size / 2
	topLeft := center.Sub(image.Pt(half, half))
	return image.Rectangle{Min: topLeft, Max: topLeft.Add(image.Pt(size, size))}.Intersect(slice)
}

// scoreArea counts legend colors in area and returns the 1-based score of
// the most frequent one. On equal counts the earlier legend entry wins.
func scoreArea(img *image.NRGBA, area image.Rectangle) (int, error) {
	var counts [LegendSize]int
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			o := img.PixOffset(x, y)
			px := img.Pix[o : o+3 : o+3]
			if i, ok := LegendIndex(px[0], px[1], px[2]); ok {
				counts[i]++
			}
		}
	}

	best, bestCount := -1, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	if best < 0 {
		return 0, ErrNoKnownColorInSample
	}
	return best + 1, nil
}
