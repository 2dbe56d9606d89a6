package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/i474232898/nearcast/internal/maps"
)

const (
	// Retention is how far before now samples are still considered.
	Retention = time.Hour

	// alignWindow is how close the first samples of both series must be.
	alignWindow = 30 * time.Minute
)

var (
	// ErrNoSeriesDataFound is returned when a series to merge is empty.
	ErrNoSeriesDataFound = errors.New("no series data found")

	// ErrNoPollenSamples is returned when no recent pollen samples remain.
	ErrNoPollenSamples = fmt.Errorf("pollen: %w", ErrNoSeriesDataFound)

	// ErrNoAQISamples is returned when no recent AQI items remain.
	ErrNoAQISamples = fmt.Errorf("AQI: %w", ErrNoSeriesDataFound)

	// ErrNoCloseMatchFound is returned when the series cannot be lined up.
	ErrNoCloseMatchFound = errors.New("no close match found to line up series")
)

// Merge combines pollen samples with AQI items into one series.
//
// Samples at or before now - Retention are dropped. The series starting
// earlier is then trimmed until its first element lies within half an hour
// of the other series' first element, after which both are paired by
// position. Each combined value is the larger of the pollen score and the
// AQI value, stamped with the pollen sample's time.
func Merge(pollen []maps.Sample, aqi []Item, now time.Time) ([]CombinedSample, error) {
	cutoff := now.Add(-Retention)
	pollen = recentSamples(pollen, cutoff)
	aqi = RecentItems(aqi, cutoff)

	if len(pollen) == 0 {
		return nil, ErrNoPollenSamples
	}
	if len(aqi) == 0 {
		return nil, ErrNoAQISamples
	}

	pollenFirst, aqiFirst := pollen[0].Time, aqi[0].Time
	if pollenFirst.Before(aqiFirst) {
		idx := firstWithin(len(pollen), func(i int) time.Time { return pollen[i].Time }, aqiFirst)
		if idx < 0 {
			return nil, fmt.Errorf("%w: pollen vs AQI starting %s", ErrNoCloseMatchFound, aqiFirst.Format(time.RFC3339))
		}
		pollen = pollen[idx:]
	} else {
		idx := firstWithin(len(aqi), func(i int) time.Time { return aqi[i].Time }, pollenFirst)
		if idx < 0 {
			return nil, fmt.Errorf("%w: AQI vs pollen starting %s", ErrNoCloseMatchFound, pollenFirst.Format(time.RFC3339))
		}
		aqi = aqi[idx:]
	}

	n := min(len(pollen), len(aqi))
	combined := make([]CombinedSample, n)
	for i := 0; i < n; i++ {
		combined[i] = CombinedSample{
			Time:  pollen[i].Time,
			Value: math.Max(float64(pollen[i].Score), aqi[i].Value),
		}
	}
	return combined, nil
}

// firstWithin returns the first index whose time is strictly within
// alignWindow of target, or -1.
func firstWithin(n int, timeAt func(int) time.Time, target time.Time) int {
	for i := 0; i < n; i++ {
		d := timeAt(i).Sub(target)
		if d < 0 {
			d = -d
		}
		if d < alignWindow {
			return i
		}
	}
	return -1
}

func recentSamples(samples []maps.Sample, cutoff time.Time) []maps.Sample {
	out := make([]maps.Sample, 0, len(samples))
	for _, s := range samples {
		if s.Time.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// RecentItems returns the items stamped after cutoff, in order.
func RecentItems(items []Item, cutoff time.Time) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Time.After(cutoff) {
			out = append(out, it)
		}
	}
	return out
}

// RecentCombined returns the combined samples stamped after cutoff, in order.
func RecentCombined(samples []CombinedSample, cutoff time.Time) []CombinedSample {
	out := make([]CombinedSample, 0, len(samples))
	for _, s := range samples {
		if s.Time.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
