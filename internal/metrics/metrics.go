package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "charts",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "charts",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "charts",
		Name:      "upstream_requests_total",
		Help:      "Total upstream calls by provider and result status.",
	}, []string{"provider", "status"})

	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "charts",
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream call duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"provider"})

	ResolverBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "charts",
		Name:      "resolver_batches_total",
		Help:      "Total lookup batches issued by the bulk resolver.",
	})

	UnresolvedIdentifiersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "charts",
		Name:      "unresolved_identifiers_total",
		Help:      "Ranked identifiers dropped because the lookup returned no record.",
	})

	OverlayFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "charts",
		Name:      "overlay_fetches_total",
		Help:      "Overlay fetches by outcome (ok, error).",
	}, []string{"status"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		ResolverBatchesTotal,
		UnresolvedIdentifiersTotal,
		OverlayFetchesTotal,
	)
}
