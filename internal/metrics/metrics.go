package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests         *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	CacheWriteErrors prometheus.Counter
	Throttled        *prometheus.CounterVec
	APIErrors        *prometheus.CounterVec
	RequestSeconds   *prometheus.HistogramVec
	HTTPDuration     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geogate_lookups_total",
			Help: "Total number of geocoding lookups by provider, kind and outcome.",
		}, []string{"provider", "kind", "status"}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geogate_cache_lookups_total",
			Help: "Total number of response cache lookups.",
		}, []string{"result"}),
		CacheWriteErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geogate_cache_write_errors_total",
			Help: "Total number of failed deferred cache writes.",
		}),
		Throttled: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geogate_throttled_total",
			Help: "Total number of lookups answered empty because the provider was throttled.",
		}, []string{"provider"}),
		APIErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geogate_provider_api_errors_total",
			Help: "Total number of errors received from geocoding provider APIs.",
		}, []string{"provider"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geogate_provider_request_duration_seconds",
			Help:    "Duration of requests to geocoding provider APIs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		HTTPDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geogate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the gateway.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
