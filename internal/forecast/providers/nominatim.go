package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/nearcast/internal/forecast"
	"github.com/i474232898/nearcast/internal/geo"
)

// NominatimGeocoder implements forecast.Geocoder using an OpenStreetMap
// Nominatim search endpoint.
type NominatimGeocoder struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewNominatimGeocoder(client *http.Client, baseURL, userAgent string) *NominatimGeocoder {
	return &NominatimGeocoder{
		name:    "nominatim",
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client, userAgent),
		circuit: newCircuitBreaker("nominatim"),
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (geo.Position, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", address)
		values.Set("format", "jsonv2")
		values.Set("limit", "1")

		u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, g.name, g.httpCfg, g.circuit, buildRequest)
	if err != nil {
		return geo.Position{}, err
	}
	defer resp.Body.Close()

	// Nominatim encodes coordinates as strings.
	var places []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return geo.Position{}, fmt.Errorf("%s: decode: %w", g.name, err)
	}
	if len(places) == 0 {
		return geo.Position{}, fmt.Errorf("%w: %q", forecast.ErrNoPositionFound, address)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return geo.Position{}, fmt.Errorf("%s: latitude: %w", g.name, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return geo.Position{}, fmt.Errorf("%s: longitude: %w", g.name, err)
	}
	return geo.New(lat, lon), nil
}
