package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search funnel Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopgrep",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"status"}, // "ok" / "degraded" / "error"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopgrep",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // "parse" / "retrieve" / "refine" / "total"
	)

	SearchFunnelSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopgrep",
			Name:      "search_funnel_size",
			Help:      "Candidate counts at each retrieval funnel stage",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 500},
		},
		[]string{"stage"}, // "sql" / "semantic" / "fused" / "final"
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
	prometheus.MustRegister(SearchFunnelSize)
	searchMetricsRegistered = true
}
