package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks outbox dispatch results.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox collectors.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dispatch_total",
		Help: "Outbox rows dispatched partitioned by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(dispatched)
	return &OutboxMetrics{dispatched: dispatched}
}

// IncDispatch records one dispatch attempt ("published", "retry", "dead_letter").
func (m *OutboxMetrics) IncDispatch(eventType, result string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
