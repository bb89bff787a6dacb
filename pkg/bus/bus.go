package bus

import (
	"context"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// EventType identifies a delivery lifecycle event.
type EventType string

const (
	EventNotificationQueued           EventType = "notification.queued"
	EventNotificationRouted           EventType = "notification.routed"
	EventNotificationProcessed        EventType = "notification.processed"
	EventNotificationEscalated        EventType = "notification.escalated"
	EventDeliveryFailureInvestigation EventType = "delivery.failure_investigation"
	EventEscalationTeamNotified       EventType = "escalation.team_notified"
)

// Event is one delivery lifecycle event. External collaborators (realtime
// transport nodes, audit pipelines, the escalation team notifier) consume
// these; the engine never depends on who is listening.
type Event struct {
	Type            EventType              `json:"type"`
	NotificationID  string                 `json:"notification_id"`
	RecipientID     string                 `json:"recipient_id"`
	Status          notification.Status    `json:"status,omitempty"`
	Channels        []notification.Channel `json:"channels,omitempty"`
	EscalationLevel int                    `json:"escalation_level,omitempty"`
	Data            map[string]any         `json:"data,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Bus publishes delivery lifecycle events to subscribers. Publishing is
// fire-and-forget: a slow or absent subscriber never blocks the dispatch
// path.
type Bus interface {
	// Publish emits an event to all current subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe returns a channel of events. The subscription ends when
	// ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context) (<-chan Event, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}
