package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/i474232898/nearcast/internal/geo"
	"github.com/i474232898/nearcast/internal/maps"
)

// Metric selects a forecast series.
type Metric string

const (
	MetricAll           Metric = "all"
	MetricAQI           Metric = "AQI"
	MetricNO2           Metric = "NO2"
	MetricO3            Metric = "O3"
	MetricPAQI          Metric = "PAQI"
	MetricPM10          Metric = "PM10"
	MetricPollen        Metric = "pollen"
	MetricPrecipitation Metric = "precipitation"
	MetricUVI           Metric = "UVI"
)

// AllMetrics returns every concrete metric, in response order.
func AllMetrics() []Metric {
	return []Metric{MetricAQI, MetricNO2, MetricO3, MetricPAQI, MetricPM10, MetricPollen, MetricPrecipitation, MetricUVI}
}

// ParseMetric parses a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(MetricAll)) {
		return MetricAll, nil
	}
	for _, m := range AllMetrics() {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMetric, s)
}

// ExpandMetrics replaces MetricAll by every metric and drops duplicates.
func ExpandMetrics(metrics []Metric) []Metric {
	seen := make(map[Metric]bool, len(metrics))
	out := make([]Metric, 0, len(metrics))
	for _, m := range metrics {
		if m == MetricAll {
			return AllMetrics()
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Item is a single timestamped provider value. The unit depends on the metric.
type Item struct {
	Time  time.Time
	Value float64
}

type timedValue struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// MarshalJSON encodes the time as seconds since the UNIX epoch.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(timedValue{i.Time.Unix(), i.Value})
}

func (i *Item) UnmarshalJSON(b []byte) error {
	var v timedValue
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*i = Item{Time: time.Unix(v.Time, 0).UTC(), Value: v.Value}
	return nil
}

// CombinedSample is the larger of a pollen score and an AQI value at one instant.
type CombinedSample struct {
	Time  time.Time
	Value float64
}

// MarshalJSON encodes the time as seconds since the UNIX epoch.
func (c CombinedSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(timedValue{c.Time.Unix(), c.Value})
}

func (c *CombinedSample) UnmarshalJSON(b []byte) error {
	var v timedValue
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = CombinedSample{Time: time.Unix(v.Time, 0).UTC(), Value: v.Value}
	return nil
}

// Forecast holds the requested metrics for a position. Metrics that were
// not asked for, or could not be computed, are omitted.
type Forecast struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Time int64   `json:"time"`

	AQI           []Item           `json:"AQI,omitempty"`
	NO2           []Item           `json:"NO2,omitempty"`
	O3            []Item           `json:"O3,omitempty"`
	PAQI          []CombinedSample `json:"PAQI,omitempty"`
	PM10          []Item           `json:"PM10,omitempty"`
	Pollen        []maps.Sample    `json:"pollen,omitempty"`
	Precipitation []Item           `json:"precipitation,omitempty"`
	UVI           []maps.Sample    `json:"UVI,omitempty"`
}

func newForecast(pos geo.Position, now time.Time) Forecast {
	return Forecast{Lat: pos.Lat, Lon: pos.Lon, Time: now.Unix()}
}
