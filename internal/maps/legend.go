package maps

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// LegendSize is the number of colors (and thus scores) in the map key.
const LegendSize = 10

// legendHex is the vendor map key, lowest score first.
var legendHex = [LegendSize]string{
	"#49DA21",
	"#30D200",
	"#FFF88B",
	"#FFF642",
	"#FDBB31",
	"#FD8E24",
	"#FC103E",
	"#970A33",
	"#A66DBC",
	"#B330A1",
}

type rgb [3]uint8

// legend holds the map key colors; the 1-based position is the score.
var legend = mustParseLegend(legendHex)

var legendIndex = func() map[rgb]int {
	idx := make(map[rgb]int, LegendSize)
	for i, c := range legend {
		idx[c] = i
	}
	return idx
}()

func mustParseLegend(hexes [LegendSize]string) [LegendSize]rgb {
	var out [LegendSize]rgb
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("maps: invalid legend color %q: %v", h, err))
		}
		r, g, b := c.RGB255()
		out[i] = rgb{r, g, b}
	}
	return out
}

// LegendIndex returns the legend position of an exact RGB match.
func LegendIndex(r, g, b uint8) (int, bool) {
	i, ok := legendIndex[rgb{r, g, b}]
	return i, ok
}

// LegendColor returns the opaque color drawn on the maps for score.
func LegendColor(score int) color.NRGBA {
	if score < 1 || score > LegendSize {
		return color.NRGBA{}
	}
	c := legend[score-1]
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
}
