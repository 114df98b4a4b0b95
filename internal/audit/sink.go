// Package audit fans authentication outcomes out to observability backends.
// Sinks never fail the request that produced the event.
package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"auth-api/internal/domain"
)

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, domain.AuditEvent) {}

type multi []Sink

// Multi forwards each event to every sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Record(ctx context.Context, event domain.AuditEvent) {
	for _, s := range m {
		s.Record(ctx, event)
	}
}

// LogSink writes one log line per event.
type LogSink struct {
	logger logrus.FieldLogger
}

func NewLogSink(logger logrus.FieldLogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, event domain.AuditEvent) {
	entry := s.logger.WithFields(logrus.Fields{
		"event": string(event.Event),
		"login": event.Identifier,
		"at":    event.Timestamp,
	})
	switch event.Event {
	case domain.EventLoginFailure, domain.EventRegisterConflict:
		entry.Warn("audit")
	default:
		entry.Info("audit")
	}
}
