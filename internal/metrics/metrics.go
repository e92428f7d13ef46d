package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "illust_nest",
			Name:      "api_requests_total",
			Help:      "Requests sent to the gallery backend.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "illust_nest",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of requests sent to the gallery backend.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	LiveHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "illust_nest",
			Name:      "image_handles_live",
			Help:      "Minted image handles not yet released.",
		},
	)

	DuplicateChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "illust_nest",
			Name:      "duplicate_checks_total",
			Help:      "Duplicate image checks by outcome.",
		},
		[]string{"outcome"},
	)
)
