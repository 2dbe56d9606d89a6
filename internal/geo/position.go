package geo

import (
	"fmt"
	"math"
	"strconv"
)

// Position is a geocoded point on Earth in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// New creates a Position.
func New(lat, lon float64) Position {
	return Position{Lat: lat, Lon: lon}
}

// LatRad returns the latitude in radians.
func (p Position) LatRad() float64 {
	return p.Lat * math.Pi / 180.0
}

// LonRad returns the longitude in radians.
func (p Position) LonRad() float64 {
	return p.Lon * math.Pi / 180.0
}

// LatString formats the latitude with the given number of decimals.
func (p Position) LatString(precision int) string {
	return strconv.FormatFloat(p.Lat, 'f', precision, 64)
}

// LonString formats the longitude with the given number of decimals.
func (p Position) LonString(precision int) string {
	return strconv.FormatFloat(p.Lon, 'f', precision, 64)
}

// Key returns a canonical cache key. Positions agreeing after scaling by
// 10 000 and rounding share a key.
func (p Position) Key() string {
	return fmt.Sprintf("%d:%d", int64(math.Round(p.Lat*10_000)), int64(math.Round(p.Lon*10_000)))
}

// Equal reports whether both positions map to the same key.
func (p Position) Equal(o Position) bool {
	return p.Key() == o.Key()
}
