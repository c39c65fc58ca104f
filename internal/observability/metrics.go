package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "requests_created_total", Help: "Total service requests created"})
	MatchesCreated    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "matches_created_total", Help: "Total candidate matches persisted"})
	AcceptsWon        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "accepts_won_total", Help: "Accept calls that won the race"})
	AcceptsLost       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "accepts_lost_total", Help: "Accept calls that lost the race"})
	PartialDispatches = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "partial_dispatches_total", Help: "Dispatches degraded to the registry snapshot"})
	DispatchDuration  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "service_matching", Name: "dispatch_duration_seconds", Help: "End-to-end dispatch latency"})
	ProvidersOnline   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "service_matching", Name: "providers_available", Help: "Providers currently flagged available"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "service_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "service_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
