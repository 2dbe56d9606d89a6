package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/nearcast/internal/forecast"
	"github.com/i474232898/nearcast/internal/geo"
	"github.com/i474232898/nearcast/internal/maps"
)

var validate = validator.New()

// Build information, set at link time with -ldflags "-X ...".
var (
	Version       = "dev"
	BuildTime     = "unknown"
	GitSHA        = "unknown"
	GitCommitTime = "unknown"
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *forecast.Service) {
	app.Get("/forecast", func(c *fiber.Ctx) error {
		metrics, err := parseMetrics(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		pos, err := resolvePosition(c, service)
		if err != nil {
			return err
		}

		return c.JSON(service.Forecast(c.UserContext(), pos, metrics))
	})

	app.Get("/map", func(c *fiber.Ctx) error {
		raw := c.Query("metric")
		if raw == "" {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "metric query parameter is required")
		}
		metric, err := forecast.ParseMetric(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		pos, err := resolvePosition(c, service)
		if err != nil {
			return err
		}

		png, err := service.MarkImage(metric, pos)
		if err != nil {
			return toHTTPError(err)
		}

		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(png)
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version":       Version,
			"timestamp":     BuildTime,
			"git_sha":       GitSHA,
			"git_timestamp": GitCommitTime,
		})
	})
}

// RasterStatus reports the freshness of the cached raster maps.
type RasterStatus interface {
	Age(kind maps.Kind) (time.Duration, bool)
	IsStale(kind maps.Kind) bool
}

// RegisterHealth adds the health endpoint, reporting the age and staleness
// of every raster family.
func RegisterHealth(app *fiber.App, rasters RasterStatus) {
	app.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":  "ok",
			"service": "nearcast",
		}
		for _, fam := range maps.Families() {
			kind := string(fam.Kind)
			if age, ok := rasters.Age(fam.Kind); ok {
				status[kind+"_age_seconds"] = int64(age.Seconds())
			}
			status[kind+"_stale"] = rasters.IsStale(fam.Kind)
		}
		return c.JSON(status)
	})
}

// positionQuery holds the query parameters identifying a position. An
// address takes precedence over coordinates.
type positionQuery struct {
	Address string `validate:"required_without_all=Lat Lon"`
	Lat     string `validate:"required_without=Address,omitempty,latitude"`
	Lon     string `validate:"required_without=Address,omitempty,longitude"`
}

func parsePositionQuery(c *fiber.Ctx) (positionQuery, error) {
	q := positionQuery{
		Address: strings.TrimSpace(c.Query("address")),
		Lat:     strings.TrimSpace(c.Query("lat")),
		Lon:     strings.TrimSpace(c.Query("lon")),
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func resolvePosition(c *fiber.Ctx, service *forecast.Service) (geo.Position, error) {
	q, err := parsePositionQuery(c)
	if err != nil {
		return geo.Position{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if q.Address != "" {
		pos, err := service.ResolveAddress(c.UserContext(), q.Address)
		if err != nil {
			return geo.Position{}, toHTTPError(err)
		}
		return pos, nil
	}

	lat, err := strconv.ParseFloat(q.Lat, 64)
	if err != nil {
		return geo.Position{}, fiber.NewError(fiber.StatusBadRequest, "invalid lat")
	}
	lon, err := strconv.ParseFloat(q.Lon, 64)
	if err != nil {
		return geo.Position{}, fiber.NewError(fiber.StatusBadRequest, "invalid lon")
	}
	return geo.New(lat, lon), nil
}

// parseMetrics accepts repeated and comma separated metrics parameters.
func parseMetrics(c *fiber.Ctx) ([]forecast.Metric, error) {
	var metrics []forecast.Metric
	for _, raw := range c.Context().QueryArgs().PeekMulti("metrics") {
		for _, name := range strings.Split(string(raw), ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			m, err := forecast.ParseMetric(name)
			if err != nil {
				return nil, err
			}
			metrics = append(metrics, m)
		}
	}
	if len(metrics) == 0 {
		return nil, errors.New("at least one metric is required")
	}
	return metrics, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, forecast.ErrNoPositionFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, maps.ErrNoDataYet):
		return fiber.NewError(fiber.StatusServiceUnavailable, "no maps available yet")
	case errors.Is(err, maps.ErrOutOfBoundCoords), errors.Is(err, maps.ErrOutOfBoundOffset):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, forecast.ErrUnsupportedMetric):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
