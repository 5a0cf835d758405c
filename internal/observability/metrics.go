package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesOffered   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "rides_offered_total", Help: "Total number of rides offered"})
	RidesActive    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_sharing", Name: "rides_active", Help: "Number of currently active rides"})
	RidesEnded     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "rides_ended_total", Help: "Total number of rides ended"})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "rides_cancelled_total", Help: "Total number of rides cancelled"})
	Selections     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "selections_total", Help: "Total number of successful ride selections"})
	NoMatch        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_sharing", Name: "no_match_total", Help: "Total number of selections with no matching path"})
	MatchLatency   = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_sharing", Name: "match_latency_seconds", Help: "Path search latency seconds"})
	PathLegs       = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ride_sharing",
		Name:      "path_legs",
		Help:      "Number of legs in matched paths",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_sharing", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_sharing",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
