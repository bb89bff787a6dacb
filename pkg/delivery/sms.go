package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// smsMaxLength is the single-segment SMS limit; messages are truncated to
// fit, severity prefix and ellipsis included.
const smsMaxLength = 160

// SMSGateway is the transport collaborator that actually sends a text
// message. Implementations wrap providers like Twilio.
type SMSGateway interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// SMSGatewayFunc adapts a function to the SMSGateway interface.
type SMSGatewayFunc func(ctx context.Context, phone, message string) error

func (f SMSGatewayFunc) SendSMS(ctx context.Context, phone, message string) error {
	return f(ctx, phone, message)
}

// SMSAdapter delivers through an SMS gateway, formatting the notification
// down to a single 160-character segment.
type SMSAdapter struct {
	gateway   SMSGateway
	directory Directory
}

func NewSMSAdapter(gateway SMSGateway, directory Directory) *SMSAdapter {
	return &SMSAdapter{gateway: gateway, directory: directory}
}

func (a *SMSAdapter) Channel() notification.Channel {
	return notification.ChannelSMS
}

func (a *SMSAdapter) Send(ctx context.Context, n *notification.Notification) error {
	phone, err := a.directory.PhoneNumber(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("sms: %w: %w", notification.ErrChannelUnavailable, err)
	}
	if err := a.gateway.SendSMS(ctx, phone, FormatSMS(n)); err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	return nil
}

// FormatSMS renders "[SEVERITY] title: message" truncated to 160 runes.
// When truncation happens the text ends with an ellipsis, and the
// severity prefix always survives intact.
func FormatSMS(n *notification.Notification) string {
	prefix := "[" + strings.ToUpper(string(n.Priority)) + "] "
	text := prefix + n.Title + ": " + n.Message

	runes := []rune(text)
	if len(runes) <= smsMaxLength {
		return text
	}
	return string(runes[:smsMaxLength-3]) + "..."
}
