package forecast

import (
	"context"

	"github.com/i474232898/nearcast/internal/geo"
	"github.com/i474232898/nearcast/internal/maps"
)

// AirQualityProvider abstracts an air quality source serving AQI, NO2, O3 and PM10.
type AirQualityProvider interface {
	Name() string
	FetchAirQuality(ctx context.Context, pos geo.Position, metric Metric) ([]Item, error)
}

// PrecipitationProvider abstracts a short-term precipitation source.
type PrecipitationProvider interface {
	Name() string
	FetchPrecipitation(ctx context.Context, pos geo.Position) ([]Item, error)
}

// Geocoder resolves a free-text address to a position.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Position, error)
}

// RasterSource is the contract of the raster map cache.
type RasterSource interface {
	Get(kind maps.Kind) (*maps.RasterSeries, error)
}
