package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/nearcast/internal/log"
)

type AppConfig struct {
	Port string

	// Debug switches the logger to development mode.
	Debug bool

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration

	// RefreshTick controls how often the raster maps are checked for refresh.
	RefreshTick time.Duration

	// SampleSize is the edge length of the map area sampled per slice.
	SampleSize int

	// Response caching.
	ProviderCacheTTL time.Duration // lifetime of cached provider series
	GeocodeCacheSize int           // max number of memoized addresses
	RedisURL         string        // optional shared cache; in-memory when empty

	NominatimURL string
	UserAgent    string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Debug = getenvBool("LOG_DEBUG", false)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	// Map refresh tick: default one minute.
	if cfg.RefreshTick, err = getenvDuration("REFRESH_TICK", "60s"); err != nil {
		return nil, err
	}
	if cfg.RefreshTick < time.Second {
		return nil, fmt.Errorf("invalid REFRESH_TICK: %s is below one second", cfg.RefreshTick)
	}
	if cfg.ProviderCacheTTL, err = getenvDuration("PROVIDER_CACHE_TTL", "30m"); err != nil {
		return nil, err
	}

	cfg.SampleSize = getenvInt("SAMPLE_SIZE", 11)
	if cfg.SampleSize < 1 {
		return nil, fmt.Errorf("invalid SAMPLE_SIZE: %d", cfg.SampleSize)
	}
	cfg.GeocodeCacheSize = getenvInt("GEOCODE_CACHE_SIZE", 100)
	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.NominatimURL = getenvDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search")
	cfg.UserAgent = getenvDefault("USER_AGENT", "nearcast/1.0 (+https://github.com/i474232898/nearcast)")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
