package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared across the application.
// Feature packages own their more specific collectors; this covers the
// request path and cross-cutting failure counters.
type Metrics struct {
	RequestDuration     *prometheus.HistogramVec
	SessionsIssued      prometheus.Counter
	SessionsRevoked     prometheus.Counter
	ActivityAppendFails prometheus.Counter
}

// New creates the shared Prometheus metrics and registers them with reg.
// Callers own the registry: main passes prometheus.DefaultRegisterer, tests
// pass a fresh prometheus.NewRegistry so instances never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "comply_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
		SessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "comply_sessions_issued_total",
			Help: "Total number of session tokens issued",
		}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "comply_sessions_revoked_total",
			Help: "Total number of sessions revoked by admins",
		}),
		ActivityAppendFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "comply_activity_append_failures_total",
			Help: "Review event appends that failed and were logged instead",
		}),
	}
}
