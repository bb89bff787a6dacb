package delivery

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/webhook"
)

// WebhookAdapter forwards the full structured notification, unmodified,
// to the recipient's registered endpoint. Signing, retries and circuit
// breaking live in the webhook sender.
type WebhookAdapter struct {
	sender    *webhook.Sender
	directory Directory
	opts      []webhook.SendOption
}

func NewWebhookAdapter(sender *webhook.Sender, directory Directory, opts ...webhook.SendOption) *WebhookAdapter {
	return &WebhookAdapter{sender: sender, directory: directory, opts: opts}
}

func (a *WebhookAdapter) Channel() notification.Channel {
	return notification.ChannelWebhook
}

func (a *WebhookAdapter) Send(ctx context.Context, n *notification.Notification) error {
	endpoint, err := a.directory.WebhookEndpoint(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("webhook: %w: %w", notification.ErrChannelUnavailable, err)
	}
	if err := a.sender.Send(ctx, endpoint, n, a.opts...); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
