package notification

// Status is the aggregate delivery status of a notification.
type Status string

const (
	StatusPending            Status = "pending"
	StatusSent               Status = "sent"
	StatusDelivered          Status = "delivered"
	StatusPartiallyDelivered Status = "partially_delivered"
	StatusFailed             Status = "failed"
	StatusEscalated          Status = "escalated"
	StatusExpired            Status = "expired"
	StatusThrottledDropped   Status = "throttled_dropped"
)

// Terminal reports whether no further transition can leave this status.
// Failed is terminal only once escalation is exhausted, which the
// escalation controller decides; the transition table still permits
// Failed -> Escalated.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusExpired, StatusThrottledDropped:
		return true
	}
	return false
}

// validTransitions is the delivery status state machine:
//
//	Pending -> Sent -> {Delivered, PartiallyDelivered, Failed}
//	{Sent, PartiallyDelivered, Failed} -> Escalated -> Sent -> ...
//	Pending -> Expired | ThrottledDropped
//
// Sent -> Escalated covers the unacknowledged-notification sweep, which
// escalates on elapsed time before any per-channel result lands.
var validTransitions = map[Status][]Status{
	StatusPending:            {StatusSent, StatusExpired, StatusThrottledDropped},
	StatusSent:               {StatusDelivered, StatusPartiallyDelivered, StatusFailed, StatusEscalated},
	StatusPartiallyDelivered: {StatusDelivered, StatusEscalated, StatusFailed},
	StatusFailed:             {StatusEscalated},
	StatusEscalated:          {StatusSent, StatusDelivered, StatusPartiallyDelivered, StatusFailed},
}

// CanTransition reports whether the status machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SetStatus moves the notification to the given status, enforcing the
// transition table. Setting the current status again is a no-op.
func (n *Notification) SetStatus(to Status) error {
	if n.Status == to {
		return nil
	}
	if !CanTransition(n.Status, to) {
		return &InvalidTransitionError{From: n.Status, To: to}
	}
	n.Status = to
	return nil
}
