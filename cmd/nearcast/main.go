package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/nearcast/internal/api/http"
	"github.com/i474232898/nearcast/internal/cache"
	"github.com/i474232898/nearcast/internal/config"
	"github.com/i474232898/nearcast/internal/forecast"
	"github.com/i474232898/nearcast/internal/forecast/providers"
	"github.com/i474232898/nearcast/internal/log"
	"github.com/i474232898/nearcast/internal/maps"
	"github.com/i474232898/nearcast/internal/metrics"
	"github.com/i474232898/nearcast/internal/scheduler"
	"github.com/i474232898/nearcast/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	// Map sprites get a longer timeout.
	mapsClient := &http.Client{
		Timeout: 3 * cfg.HTTPTimeout,
	}

	// Raster cache shared by the scheduler and the request handlers.
	rasters := store.NewRasterStore(maps.Families())

	// Response caches: Redis when configured, in-memory otherwise.
	seriesCache, geocodeCache := newCaches(cfg)

	service := forecast.NewService(
		rasters,
		providers.NewLuchtmeetnetProvider(httpClient, cfg.UserAgent),
		providers.NewBuienradarProvider(httpClient, cfg.UserAgent),
		providers.NewNominatimGeocoder(httpClient, cfg.NominatimURL, cfg.UserAgent),
		forecast.WithSeriesCache(seriesCache, cfg.ProviderCacheTTL),
		forecast.WithGeocodeCache(geocodeCache),
		forecast.WithSampleSize(cfg.SampleSize),
	)

	// Scheduler that keeps the raster maps fresh.
	sched := scheduler.New(maps.Families(), cfg.RefreshTick, 30*time.Second, rasters, providers.NewBuienradarMaps(mapsClient, cfg.UserAgent))
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "nearcast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Errorw("request failed", "path", c.Path(), "status", code, "error", err)
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	// Basic health endpoint
	httpapi.RegisterHealth(app, rasters)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		log.Infow("starting HTTP server", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorw("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorw("error during shutdown", "error", err)
	}
	if c, ok := seriesCache.(*cache.RedisCache); ok {
		_ = c.Close()
	}
}

func newCaches(cfg *config.AppConfig) (series, geocode cache.Cache) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(1000), cache.NewMemoryCache(cfg.GeocodeCacheSize)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, "nearcast:")
	if err != nil {
		log.Errorw("redis unavailable, falling back to in-memory caches", "error", err)
		return cache.NewMemoryCache(1000), cache.NewMemoryCache(cfg.GeocodeCacheSize)
	}
	log.Infow("using redis response cache")
	return rc, rc
}
