package domain

import "time"

type AuditEventType string

const (
	EventLoginAttempt     AuditEventType = "login_attempt"
	EventLoginSuccess     AuditEventType = "login_success"
	EventLoginFailure     AuditEventType = "login_failure"
	EventRegisterAttempt  AuditEventType = "register_attempt"
	EventRegisterConflict AuditEventType = "register_conflict"
	EventRegisterSuccess  AuditEventType = "register_success"
)

// AuditEvents lists every event type in a stable order.
var AuditEvents = []AuditEventType{
	EventLoginAttempt,
	EventLoginSuccess,
	EventLoginFailure,
	EventRegisterAttempt,
	EventRegisterConflict,
	EventRegisterSuccess,
}

// AuditEvent is a single authentication outcome reported to observability sinks.
type AuditEvent struct {
	Event      AuditEventType `json:"event"`
	Identifier string         `json:"identifier"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewAuditEvent(event AuditEventType, identifier string) AuditEvent {
	return AuditEvent{
		Event:      event,
		Identifier: identifier,
		Timestamp:  time.Now().UTC(),
	}
}
