package email

import (
	"context"
	"log/slog"
)

// DevSender logs emails instead of sending them. Useful for development and
// as a stand-in transport in tests.
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender creates a development email sender.
func NewDevSender(logger *slog.Logger) *DevSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevSender{logger: logger}
}

func (d *DevSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.logger.LogAttrs(ctx, slog.LevelInfo, "dev email sender: email not sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("tag", msg.Tag),
	)
	return nil
}
