package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"auth-api/internal/domain"
)

// MetricsSink counts events by type.
type MetricsSink struct {
	events *prometheus.CounterVec
}

func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	events := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "auth_audit_events_total",
		Help: "Total number of authentication audit events by type",
	}, []string{"event"})

	// expose zero-valued series from the start
	for _, e := range domain.AuditEvents {
		events.WithLabelValues(string(e))
	}
	return &MetricsSink{events: events}
}

func (s *MetricsSink) Record(_ context.Context, event domain.AuditEvent) {
	s.events.WithLabelValues(string(event.Event)).Inc()
}
