package notification

import "time"

// Attempt records one try to deliver a notification through one channel.
// Attempts are append-only.
type Attempt struct {
	Channel    Channel   `json:"channel"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retry_count"`
}

// RecordAttempt appends a delivery attempt to the notification's history.
func (n *Notification) RecordAttempt(a Attempt) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	n.Attempts = append(n.Attempts, a)
}

// FailedAttempts counts the attempts that did not succeed.
func (n *Notification) FailedAttempts() int {
	count := 0
	for _, a := range n.Attempts {
		if !a.Success {
			count++
		}
	}
	return count
}

// FailedAttemptsFor counts the failed attempts on one channel, used as the
// retry count of the next attempt on that channel.
func (n *Notification) FailedAttemptsFor(ch Channel) int {
	count := 0
	for _, a := range n.Attempts {
		if a.Channel == ch && !a.Success {
			count++
		}
	}
	return count
}

// SucceededChannels returns the set of channels that have at least one
// successful attempt. Escalation re-dispatch must never resend to these.
func (n *Notification) SucceededChannels() map[Channel]bool {
	succeeded := make(map[Channel]bool)
	for _, a := range n.Attempts {
		if a.Success {
			succeeded[a.Channel] = true
		}
	}
	return succeeded
}
