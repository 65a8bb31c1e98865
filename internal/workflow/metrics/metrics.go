package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts workflow outcomes by artifact kind.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	TransitionsDenied *prometheus.CounterVec
	ArtifactsCreated  *prometheus.CounterVec
}

// New creates the workflow metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comply_transitions_total",
			Help: "Successful status transitions by kind and target status",
		}, []string{"kind", "to"}),
		TransitionsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comply_transitions_denied_total",
			Help: "Rejected transition requests by kind and reason",
		}, []string{"kind", "reason"}),
		ArtifactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comply_artifacts_created_total",
			Help: "Artifacts created by kind",
		}, []string{"kind"}),
	}
}
