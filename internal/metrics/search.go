package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipsearch",
			Name:      "search_requests_total",
			Help:      "Total search requests by terminal pipeline state",
		},
		[]string{"tenant", "state"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search pipeline duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"tenant"},
	)

	SearchCandidatesScored = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipsearch",
			Name:      "search_candidates_scored",
			Help:      "Number of candidates scored per search",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"tenant"},
	)

	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipsearch",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions",
		},
		[]string{"result"}, // "allowed" / "rejected" / "fail_open" / "bypass"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCandidatesScored)
	prometheus.MustRegister(RateLimitDecisionsTotal)
	searchMetricsRegistered = true
}
