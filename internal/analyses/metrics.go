package analyses

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JaimeStill/seedlab/internal/acceptance"
)

// Metrics holds the Prometheus collectors for analysis operations.
// A nil *Metrics records nothing.
type Metrics struct {
	mutations   *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	ceiling     prometheus.Counter
	history     prometheus.Counter
}

// NewMetrics registers the analysis collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedlab",
			Name:      "replicate_mutations_total",
			Help:      "Committed replicate mutations by operation.",
		}, []string{"operation"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedlab",
			Name:      "batch_evaluations_total",
			Help:      "Complete batch evaluations by result.",
		}, []string{"result"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedlab",
			Name:      "status_transitions_total",
			Help:      "Analysis status changes by target status.",
		}, []string{"status"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedlab",
			Name:      "operation_rejections_total",
			Help:      "Operations refused with a domain error, by operation.",
		}, []string{"operation"}),
		ceiling: f.NewCounter(prometheus.CounterOpts{
			Namespace: "seedlab",
			Name:      "replicate_ceiling_reached_total",
			Help:      "Mutations that left an analysis blocked at the replicate ceiling.",
		}),
		history: f.NewCounter(prometheus.CounterOpts{
			Namespace: "seedlab",
			Name:      "history_failures_total",
			Help:      "History records that could not be written.",
		}),
	}
}

func (m *Metrics) mutation(op string, ev acceptance.Evaluation, ceiling bool) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
	if ev.Complete {
		result := "rejected"
		if ev.Accepted {
			result = "accepted"
		}
		m.evaluations.WithLabelValues(result).Inc()
	}
	if ceiling {
		m.ceiling.Inc()
	}
}

func (m *Metrics) transition(from, to Status) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) rejected(op string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op).Inc()
}

func (m *Metrics) historyFailed() {
	if m == nil {
		return
	}
	m.history.Inc()
}
