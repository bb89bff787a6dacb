package push

import "errors"

var (
	// ErrHubClosed is returned when publishing to or reading from a closed hub.
	ErrHubClosed = errors.New("push hub is closed")

	// ErrRecipientUnreachable is returned when no live subscriber accepted
	// the notification.
	ErrRecipientUnreachable = errors.New("recipient has no live realtime connection")
)
