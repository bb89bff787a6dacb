package strategy

import (
	"context"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// RetryPolicy is the per-priority retry budget and escalation timing.
type RetryPolicy struct {
	MaxRetries      int           `json:"max_retries"`
	EscalationDelay time.Duration `json:"escalation_delay"`
}

// Override names a preference the resolver decided to ignore. They are
// recorded on the strategy so the caller can audit why a preference was
// bypassed.
type Override string

const (
	// OverrideBypassQuietHours keeps the realtime channel even inside the
	// recipient's quiet window.
	OverrideBypassQuietHours Override = "bypass_quiet_hours"

	// OverrideForceAllChannels keeps every category-enabled channel on
	// regardless of per-channel opt-outs.
	OverrideForceAllChannels Override = "force_all_channels"
)

// Strategy is the delivery plan the resolver produces: ordered channel
// candidates, the retry policy for the notification's priority, and any
// preference overrides that apply.
type Strategy struct {
	Channels         []notification.Channel
	RetryPolicy      RetryPolicy
	OverridesApplied []Override

	// RealtimeRequired is true when the recipient was reachable at
	// resolution time, making the realtime channel a required candidate
	// rather than best-effort.
	RealtimeRequired bool
}

// HasOverride reports whether the given override was applied.
func (s Strategy) HasOverride(o Override) bool {
	for _, applied := range s.OverridesApplied {
		if applied == o {
			return true
		}
	}
	return false
}

// priorityEntry is one row of the fixed priority table.
type priorityEntry struct {
	weight int
	policy RetryPolicy
}

// priorityTable is fixed: weight, retry budget and escalation delay per
// priority. Low priority never escalates (zero delay disables the
// time-based escalation rules).
var priorityTable = map[notification.Priority]priorityEntry{
	notification.PriorityCritical: {weight: 4, policy: RetryPolicy{MaxRetries: 5, EscalationDelay: time.Minute}},
	notification.PriorityHigh:     {weight: 3, policy: RetryPolicy{MaxRetries: 3, EscalationDelay: 5 * time.Minute}},
	notification.PriorityMedium:   {weight: 2, policy: RetryPolicy{MaxRetries: 2, EscalationDelay: 10 * time.Minute}},
	notification.PriorityLow:      {weight: 1, policy: RetryPolicy{MaxRetries: 1, EscalationDelay: 0}},
}

// PolicyFor returns the retry policy for a priority. Unknown priorities
// report ok=false; callers must have validated the notification first.
func PolicyFor(p notification.Priority) (RetryPolicy, bool) {
	entry, ok := priorityTable[p]
	return entry.policy, ok
}

// PresenceChecker answers whether a recipient currently has a live
// realtime connection. The push hub implements it.
type PresenceChecker interface {
	Reachable(ctx context.Context, recipientID string) bool
}

// PresenceFunc adapts a function to the PresenceChecker interface.
type PresenceFunc func(ctx context.Context, recipientID string) bool

func (f PresenceFunc) Reachable(ctx context.Context, recipientID string) bool {
	return f(ctx, recipientID)
}

// Resolver maps a notification's priority and category to a delivery
// strategy, consulting live presence to decide whether realtime delivery is
// required.
type Resolver struct {
	presence PresenceChecker
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPresenceChecker injects the realtime presence source. Without one,
// every recipient is treated as unreachable on the realtime channel.
func WithPresenceChecker(p PresenceChecker) ResolverOption {
	return func(r *Resolver) {
		if p != nil {
			r.presence = p
		}
	}
}

// NewResolver creates a priority resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		presence: PresenceFunc(func(context.Context, string) bool { return false }),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DetermineStrategy produces the delivery strategy for a notification.
// It returns a *notification.ValidationError for unknown priority or
// category: such notifications are rejected, never queued.
//
// When the recipient is reachable on the realtime channel it is placed
// first regardless of priority; otherwise it is omitted from the required
// candidates (routing rules may still add it best-effort). Critical
// notifications bypass quiet hours and force all category-enabled channels
// on, and both overrides are recorded for auditing.
func (r *Resolver) DetermineStrategy(ctx context.Context, recipientID string, n *notification.Notification) (Strategy, error) {
	if !n.Priority.Valid() {
		return Strategy{}, &notification.ValidationError{Field: "priority", Reason: "unknown value " + string(n.Priority)}
	}
	if !n.Category.Valid() {
		return Strategy{}, &notification.ValidationError{Field: "category", Reason: "unknown value " + string(n.Category)}
	}

	entry := priorityTable[n.Priority]
	s := Strategy{RetryPolicy: entry.policy}

	if r.presence.Reachable(ctx, recipientID) {
		s.RealtimeRequired = true
		s.Channels = append(s.Channels, notification.ChannelRealtime)
	}

	switch n.Priority {
	case notification.PriorityCritical:
		s.OverridesApplied = append(s.OverridesApplied, OverrideBypassQuietHours, OverrideForceAllChannels)
		for _, ch := range notification.AllChannels() {
			if ch == notification.ChannelRealtime {
				continue
			}
			s.Channels = append(s.Channels, ch)
		}
	case notification.PriorityHigh:
		s.Channels = append(s.Channels, notification.ChannelEmail, notification.ChannelSMS)
	case notification.PriorityMedium:
		s.Channels = append(s.Channels, notification.ChannelEmail)
	default:
		// Low priority rides on routing rules and preferences alone.
	}

	return s, nil
}
