package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movieapp",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "movieapp",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "path"})

	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movieapp",
		Name:      "catalog_requests_total",
		Help:      "Total requests to the remote movie catalog by result status.",
	}, []string{"status"})

	CatalogRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "movieapp",
		Name:      "catalog_request_duration_seconds",
		Help:      "Remote movie catalog request duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	TrendingSourceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movieapp",
		Name:      "trending_source_total",
		Help:      "Trending listings served, by source (remote or local).",
	}, []string{"source"})

	ConnectivityChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movieapp",
		Name:      "connectivity_checks_total",
		Help:      "Connectivity probe results (online or offline).",
	}, []string{"result"})

	QueryCommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "movieapp",
		Name:      "query_commits_total",
		Help:      "Debounced query commits that triggered a fetch, by kind (trending, search, retry).",
	}, []string{"kind"})

	QuerySuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "movieapp",
		Name:      "query_suppressed_total",
		Help:      "Debounced query commits dropped because the value did not change.",
	})

	WSSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "movieapp",
		Name:      "ws_sessions_active",
		Help:      "Currently connected WebSocket listing sessions.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogRequestsTotal,
		CatalogRequestDuration,
		TrendingSourceTotal,
		ConnectivityChecksTotal,
		QueryCommitsTotal,
		QuerySuppressedTotal,
		WSSessionsActive,
	)
}
