package delivery

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// LogAdapter is a development transport that logs instead of sending.
// Wire one per channel to run the whole pipeline without providers.
type LogAdapter struct {
	channel notification.Channel
	log     *slog.Logger
}

func NewLogAdapter(channel notification.Channel, log *slog.Logger) *LogAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &LogAdapter{channel: channel, log: log}
}

func (a *LogAdapter) Channel() notification.Channel {
	return a.channel
}

func (a *LogAdapter) Send(ctx context.Context, n *notification.Notification) error {
	a.log.InfoContext(ctx, "dev delivery",
		slog.String("channel", string(a.channel)),
		slog.String("notification_id", n.ID),
		slog.String("recipient_id", n.RecipientID),
		slog.String("title", n.Title))
	return nil
}
