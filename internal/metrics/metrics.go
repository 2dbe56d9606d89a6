package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RasterRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearcast_raster_refresh_total",
		Help: "Raster refresh attempts by kind and result",
	}, []string{"kind", "result"})
	RasterAgeSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nearcast_raster_age_seconds",
		Help: "Seconds since the cached raster was fetched",
	}, []string{"kind"})
	RasterStale = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nearcast_raster_stale",
		Help: "1 when every slice of the cached raster has elapsed",
	}, []string{"kind"})
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearcast_provider_requests_total",
		Help: "Outbound provider requests by provider and result",
	}, []string{"provider", "result"})
	ProviderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nearcast_provider_duration_ms",
		Help:    "Outbound provider call duration in milliseconds",
		Buckets: []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"provider"})
	MetricFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearcast_metric_failures_total",
		Help: "Forecast metrics omitted because their computation failed",
	}, []string{"metric"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearcast_cache_hits_total",
		Help: "Response cache hits by namespace",
	}, []string{"namespace"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearcast_cache_misses_total",
		Help: "Response cache misses by namespace",
	}, []string{"namespace"})
)

func init() {
	prometheus.MustRegister(RasterRefreshTotal)
	prometheus.MustRegister(RasterAgeSeconds)
	prometheus.MustRegister(RasterStale)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderDurationMs)
	prometheus.MustRegister(MetricFailuresTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
