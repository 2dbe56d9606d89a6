package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/nearcast/internal/forecast"
	"github.com/i474232898/nearcast/internal/geo"
)

// luchtmeetnetFormulas maps the supported metrics onto Luchtmeetnet formulas.
var luchtmeetnetFormulas = map[forecast.Metric]string{
	forecast.MetricAQI:  "lki",
	forecast.MetricNO2:  "no2",
	forecast.MetricO3:   "o3",
	forecast.MetricPM10: "pm10",
}

// LuchtmeetnetProvider implements forecast.AirQualityProvider for the
// Luchtmeetnet open data API.
type LuchtmeetnetProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewLuchtmeetnetProvider(client *http.Client, userAgent string) *LuchtmeetnetProvider {
	return &LuchtmeetnetProvider{
		name:    "luchtmeetnet",
		baseURL: "https://api.luchtmeetnet.nl/open_api/concentrations",
		httpCfg: defaultHTTPConfig(client, userAgent),
		circuit: newCircuitBreaker("luchtmeetnet"),
	}
}

func (p *LuchtmeetnetProvider) Name() string {
	return p.name
}

func (p *LuchtmeetnetProvider) FetchAirQuality(ctx context.Context, pos geo.Position, metric forecast.Metric) ([]forecast.Item, error) {
	formula, ok := luchtmeetnetFormulas[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %s not served by %s", forecast.ErrUnsupportedMetric, metric, p.name)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("formula", formula)
		values.Set("latitude", pos.LatString(5))
		values.Set("longitude", pos.LonString(5))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data []struct {
			TimestampMeasured time.Time `json:"timestamp_measured"`
			Value             float64   `json:"value"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", p.name, err)
	}

	items := make([]forecast.Item, 0, len(payload.Data))
	for _, d := range payload.Data {
		items = append(items, forecast.Item{Time: d.TimestampMeasured.UTC(), Value: d.Value})
	}
	return items, nil
}
