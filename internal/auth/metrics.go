package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gate's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	decisions       *prometheus.CounterVec
	resolveFailures *prometheus.CounterVec
	resolveDuration prometheus.Histogram
}

// NewMetrics registers the gate collectors with registry. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Gate decisions by route class and action.",
		}, []string{"class", "action"}),
		resolveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "session_resolve_failures_total",
			Help:      "Session resolutions that failed, by kind (call, unavailable).",
		}, []string{"kind"}),
		resolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "folio",
			Name:      "session_resolve_duration_seconds",
			Help:      "Time spent resolving a session against the backend.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) recordDecision(class RouteClass, action Action) {
	if m == nil {
		return
	}
	kind := "forward"
	if action.Kind == ActionRedirect {
		kind = "redirect"
	}
	m.decisions.WithLabelValues(class.String(), kind).Inc()
}

func (m *Metrics) recordFailure(kind string) {
	if m == nil {
		return
	}
	m.resolveFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeResolve(start time.Time) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(time.Since(start).Seconds())
}
