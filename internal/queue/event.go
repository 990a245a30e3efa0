// Package queue defines the notification payloads exchanged over the message
// broker, the publisher the domain services dispatch through, and the
// consumer that turns events into outbound mail.
package queue

import "time"

// Notification event types.
const (
	EventClientDesignConfirmation = "client_design_confirmation"
	EventDeveloperDesignAlert     = "developer_design_alert"
	EventPhaseChanged             = "phase_changed"
	EventPasswordReset            = "password_reset"
	EventMagicLink                = "magic_link"
	EventClientNewMessage         = "client_new_message"
	EventDeveloperNewMessage      = "developer_new_message"
)

// NotificationEvent is published whenever a state change should reach a
// person.  It carries enough information for the consumer to render and
// address the message without reading the project back.
type NotificationEvent struct {
	Type       string            `json:"type"`
	ProjectID  string            `json:"projectId"`
	To         string            `json:"to"`
	Subject    string            `json:"subject,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}
