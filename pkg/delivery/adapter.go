package delivery

import (
	"context"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// Adapter performs the actual send for one channel type through an
// injected transport collaborator. Implementations format the message the
// way the channel expects; the coordinator handles timeouts, attempt
// recording and status aggregation.
type Adapter interface {
	Channel() notification.Channel
	Send(ctx context.Context, n *notification.Notification) error
}

// DefaultTimeouts bounds a single channel send. Realtime delivery either
// lands quickly or not at all; the async transports get minutes because
// their providers retry internally.
var DefaultTimeouts = map[notification.Channel]time.Duration{
	notification.ChannelRealtime: 30 * time.Second,
	notification.ChannelEmail:    3 * time.Minute,
	notification.ChannelSMS:      2 * time.Minute,
	notification.ChannelChat:     2 * time.Minute,
	notification.ChannelWebhook:  2 * time.Minute,
}

// Directory resolves recipient IDs to channel-specific addresses. It is an
// external collaborator, typically backed by the user profile service.
type Directory interface {
	EmailAddress(ctx context.Context, recipientID string) (string, error)
	PhoneNumber(ctx context.Context, recipientID string) (string, error)
	WebhookEndpoint(ctx context.Context, recipientID string) (string, error)
}

// StaticDirectory is a Directory backed by fixed maps, for development and
// tests. A recipient missing from a map resolves to ErrAddressNotFound.
type StaticDirectory struct {
	Emails    map[string]string
	Phones    map[string]string
	Endpoints map[string]string
}

func (d StaticDirectory) EmailAddress(_ context.Context, recipientID string) (string, error) {
	if addr, ok := d.Emails[recipientID]; ok {
		return addr, nil
	}
	return "", ErrAddressNotFound
}

func (d StaticDirectory) PhoneNumber(_ context.Context, recipientID string) (string, error) {
	if phone, ok := d.Phones[recipientID]; ok {
		return phone, nil
	}
	return "", ErrAddressNotFound
}

func (d StaticDirectory) WebhookEndpoint(_ context.Context, recipientID string) (string, error) {
	if endpoint, ok := d.Endpoints[recipientID]; ok {
		return endpoint, nil
	}
	return "", ErrAddressNotFound
}
