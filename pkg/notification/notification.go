package notification

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies what a notification is about. The set is closed:
// values outside it fail validation instead of being defaulted.
type Category string

const (
	CategorySecurity       Category = "security"
	CategorySystem         Category = "system"
	CategorySocial         Category = "social"
	CategoryTask           Category = "task"
	CategoryAdministrative Category = "administrative"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategorySecurity, CategorySystem, CategorySocial, CategoryTask, CategoryAdministrative:
		return true
	}
	return false
}

// Priority expresses delivery urgency. The set is closed: values outside
// it fail validation instead of being defaulted.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether the priority is one of the known values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Weight returns the numeric urgency used for queue ordering decisions.
// Higher means more urgent.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Notification is the core domain model moving through the delivery engine.
// The producer owns it until it is enqueued; from then on the delivery
// coordinator owns it until it reaches a terminal status.
type Notification struct {
	ID              string         `json:"id"`
	RecipientID     string         `json:"recipient_id"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	Category        Category       `json:"category"`
	Priority        Priority       `json:"priority"`
	Payload         map[string]any `json:"payload,omitempty"`
	Acknowledged    bool           `json:"acknowledged"`
	EscalationLevel int            `json:"escalation_level"`
	Status          Status         `json:"status"`
	Attempts        []Attempt      `json:"attempts,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
}

// New creates a validated notification in the Pending state.
// It returns a *ValidationError when required fields are missing or when
// category/priority fall outside their closed enums.
func New(recipientID, title, message string, category Category, priority Priority, payload map[string]any) (*Notification, error) {
	n := &Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Category:    category,
		Priority:    priority,
		Payload:     payload,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks required fields and the closed category/priority enums.
func (n *Notification) Validate() error {
	if n.RecipientID == "" {
		return &ValidationError{Field: "recipient_id", Reason: "is required"}
	}
	if n.Title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if n.Message == "" {
		return &ValidationError{Field: "message", Reason: "is required"}
	}
	if !n.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown value " + string(n.Category)}
	}
	if !n.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "unknown value " + string(n.Priority)}
	}
	return nil
}

// IsExpired reports whether the notification passed its expiry deadline.
func (n *Notification) IsExpired() bool {
	if n.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*n.ExpiresAt)
}

// RaiseEscalationLevel bumps the escalation level, capped at maxLevel.
// The level never decreases. It returns the new level and whether the bump
// actually happened.
func (n *Notification) RaiseEscalationLevel(maxLevel int) (int, bool) {
	if n.EscalationLevel >= maxLevel {
		return n.EscalationLevel, false
	}
	n.EscalationLevel++
	return n.EscalationLevel, true
}
