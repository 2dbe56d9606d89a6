package providers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/gocarina/gocsv"
	"github.com/sony/gobreaker"

	"github.com/i474232898/nearcast/internal/forecast"
	"github.com/i474232898/nearcast/internal/geo"
	"github.com/i474232898/nearcast/internal/maps"
)

// BuienradarProvider implements forecast.PrecipitationProvider for the
// Buienradar rain text feed.
type BuienradarProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewBuienradarProvider(client *http.Client, userAgent string) *BuienradarProvider {
	return &BuienradarProvider{
		name:    "buienradar",
		baseURL: "https://gpsgadget.buienradar.nl/data/raintext",
		httpCfg: defaultHTTPConfig(client, userAgent),
		circuit: newCircuitBreaker("buienradar"),
		now:     time.Now,
	}
}

func (p *BuienradarProvider) Name() string {
	return p.name
}

// rainLine is one `value|HH:MM` line of the rain text feed.
type rainLine struct {
	Value string `csv:"value"`
	Clock string `csv:"time"`
}

func (p *BuienradarProvider) FetchPrecipitation(ctx context.Context, pos geo.Position) ([]forecast.Item, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", pos.LatString(2))
		values.Set("lon", pos.LonString(2))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	items, err := parseRainText(resp.Body, p.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	return items, nil
}

var amsterdam = mustLoadLocation("Europe/Amsterdam")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// parseRainText parses the rain text feed. Clock times are local to
// Amsterdam on the day of now; a time earlier than its predecessor is
// taken to be on the following day.
func parseRainText(r io.Reader, now time.Time) ([]forecast.Item, error) {
	reader := csv.NewReader(r)
	reader.Comma = '|'
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var lines []rainLine
	if err := gocsv.UnmarshalCSVWithoutHeaders(reader, &lines); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, err
	}

	local := now.In(amsterdam)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, amsterdam)

	items := make([]forecast.Item, 0, len(lines))
	var prev time.Time
	for i, line := range lines {
		value, err := rainIntensity(line.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		clock, err := time.Parse("15:04", strings.TrimSpace(line.Clock))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		t := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, amsterdam)
		if !prev.IsZero() && t.Before(prev) {
			day = day.AddDate(0, 0, 1)
			t = t.AddDate(0, 0, 1)
		}
		prev = t

		items = append(items, forecast.Item{Time: t.UTC(), Value: value})
	}
	return items, nil
}

// rainIntensity converts a feed value into mm/h, rounded to 0.1.
func rainIntensity(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	mmh := math.Pow(10, (v-109)/32)
	return math.Round(mmh*10) / 10, nil
}

// BuienradarMaps downloads the composite map sprites published by Buienradar.
type BuienradarMaps struct {
	name    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewBuienradarMaps(client *http.Client, userAgent string) *BuienradarMaps {
	return &BuienradarMaps{
		name:    "buienradar-maps",
		httpCfg: defaultHTTPConfig(client, userAgent),
		circuit: newCircuitBreaker("buienradar-maps"),
	}
}

// seriesStartLayout is the UTC timestamp prefixing the sprite file name.
const seriesStartLayout = "200601021504"

// Fetch retrieves the sprite of fam. The series start is read from the name
// of the file the URL redirects to and the fetch time from its
// Last-Modified header.
func (m *BuienradarMaps) Fetch(ctx context.Context, fam maps.Family) (*maps.RasterSeries, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, fam.URL, nil)
	}

	resp, err := doRequestWithResilience(ctx, m.name, m.httpCfg, m.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", maps.ErrFetchFailed, fam.Kind, err)
	}
	defer resp.Body.Close()

	fetchedAt, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: Last-Modified: %v", maps.ErrFetchFailed, fam.Kind, err)
	}
	seriesStart, err := seriesStartFromPath(resp.Request.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", maps.ErrFetchFailed, fam.Kind, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", maps.ErrFetchFailed, fam.Kind, err)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", maps.ErrDecodeFailed, fam.Kind, err)
	}

	return maps.NewRasterSeries(img, fam.SliceCount, fam.SliceInterval, seriesStart, fetchedAt.UTC())
}

func seriesStartFromPath(p string) (time.Time, error) {
	base := path.Base(p)
	stamp, _, found := strings.Cut(base, "__")
	if !found {
		return time.Time{}, fmt.Errorf("no timestamp in file name %q", base)
	}
	return time.Parse(seriesStartLayout, stamp)
}
