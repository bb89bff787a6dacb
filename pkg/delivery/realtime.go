package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/push"
)

// RealtimeAdapter delivers through the in-process push hub. A recipient
// with no live subscriber is a ChannelUnavailable failure, which the
// coordinator records without aborting the other channels.
type RealtimeAdapter struct {
	hub *push.Hub
}

func NewRealtimeAdapter(hub *push.Hub) *RealtimeAdapter {
	return &RealtimeAdapter{hub: hub}
}

func (a *RealtimeAdapter) Channel() notification.Channel {
	return notification.ChannelRealtime
}

func (a *RealtimeAdapter) Send(ctx context.Context, n *notification.Notification) error {
	if err := a.hub.Publish(ctx, *n); err != nil {
		if errors.Is(err, push.ErrRecipientUnreachable) || errors.Is(err, push.ErrHubClosed) {
			return fmt.Errorf("realtime push: %w: %w", notification.ErrChannelUnavailable, err)
		}
		return fmt.Errorf("realtime push: %w", err)
	}
	return nil
}
