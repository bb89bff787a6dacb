package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// NotificationID records the notification identifier under "notification_id".
func NotificationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("notification_id", id)
}

// RecipientID records the recipient identifier under "recipient_id".
func RecipientID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("recipient_id", id)
}

// Channel records a delivery channel name under "channel".
func Channel(ch any) slog.Attr {
	if ch == nil {
		return slog.Attr{}
	}
	return slog.Any("channel", ch)
}

// EscalationLevel records the escalation level under "escalation_level".
func EscalationLevel(level int) slog.Attr {
	return slog.Int("escalation_level", level)
}
