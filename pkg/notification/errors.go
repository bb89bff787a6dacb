package notification

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a notification does not exist.
	ErrNotFound = errors.New("notification not found")

	// ErrChannelUnavailable indicates the adapter or transport for a channel
	// is not configured. Recorded as a failed attempt, never cascaded.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrDeliveryTimeout indicates a channel-specific send timeout elapsed.
	ErrDeliveryTimeout = errors.New("delivery timed out")

	// ErrThrottled indicates the recipient is over the rate limit; the
	// notification was never queued.
	ErrThrottled = errors.New("recipient throttled")

	// ErrEscalationLimitReached indicates the escalation level is already at
	// its maximum and no further escalation will happen.
	ErrEscalationLimitReached = errors.New("escalation limit reached")

	// ErrConfiguration indicates a malformed rule or option at load/import
	// time. The previous configuration remains active.
	ErrConfiguration = errors.New("invalid configuration")
)

// ValidationError rejects bad input synchronously; such notifications are
// never queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidTransitionError indicates a delivery status change the state
// machine does not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}
