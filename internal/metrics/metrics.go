// Package metrics exposes the Prometheus collectors for the serving core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_queries_total",
		Help: "Total feature queries by layer",
	}, []string{"layer"})
	QueryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlas_query_duration_ms",
		Help:    "Feature query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atlas_cache_hits_total",
		Help: "Total tile cache hits",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atlas_cache_misses_total",
		Help: "Total tile cache misses",
	})
	CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atlas_cache_evictions_total",
		Help: "Total tile cache evictions (TTL, item cap or byte cap)",
	})
	FeaturesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_features_dropped_total",
		Help: "Features dropped during sanitization",
	}, []string{"reason"})
	FeaturesTruncated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atlas_features_truncated_total",
		Help: "Features removed by the per-query feature cap",
	})
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		QueryDurationMs,
		CacheHits,
		CacheMisses,
		CacheEvictions,
		FeaturesDropped,
		FeaturesTruncated,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
