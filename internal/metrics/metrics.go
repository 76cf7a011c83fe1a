// Package metrics exposes Prometheus metrics for provider calls
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partscout_provider_searches_total",
			Help: "Total number of keyword searches per provider",
		},
		[]string{"provider", "status"},
	)

	ProviderDetails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partscout_provider_details_total",
			Help: "Total number of detail lookups per provider",
		},
		[]string{"provider", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partscout_provider_call_duration_seconds",
			Help:    "Duration of outbound provider calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"provider", "op"},
	)

	DetailCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partscout_detail_cache_hits_total",
			Help: "Detail lookups served from cache",
		},
		[]string{"provider"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partscout_jobs_processed_total",
			Help: "Import jobs processed by terminal status",
		},
		[]string{"status"},
	)
)

// ObserveCall records the outcome and duration of one provider call
func ObserveCall(provider, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	switch op {
	case "search":
		ProviderSearches.WithLabelValues(provider, status).Inc()
	case "details":
		ProviderDetails.WithLabelValues(provider, status).Inc()
	}
	ProviderCallDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}
