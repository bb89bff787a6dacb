package storage

import (
	"context"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// Store persists notifications and their delivery attempts. The delivery
// coordinator writes every status change through it, and the escalation
// sweep reads un-acknowledged notifications back out.
type Store interface {
	// Create stores a new notification.
	Create(ctx context.Context, n notification.Notification) error

	// Get retrieves a notification by ID.
	Get(ctx context.Context, id string) (*notification.Notification, error)

	// Update persists the notification's current status, escalation level
	// and attempt history.
	Update(ctx context.Context, n notification.Notification) error

	// ListUnacknowledged returns notifications in one of the given statuses
	// that have not been acknowledged and were created before the cutoff.
	ListUnacknowledged(ctx context.Context, statuses []notification.Status, createdBefore time.Time) ([]notification.Notification, error)

	// Acknowledge marks a notification as acknowledged by its recipient.
	Acknowledge(ctx context.Context, id string) error
}
