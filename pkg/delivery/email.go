package delivery

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/dmitrymomot/alertkit/pkg/email"
	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// EmailAdapter delivers through an email sender. Escalation deliveries
// (payload escalated=true) are tagged so downstream templates can render
// them differently.
type EmailAdapter struct {
	sender    email.Sender
	directory Directory
}

func NewEmailAdapter(sender email.Sender, directory Directory) *EmailAdapter {
	return &EmailAdapter{sender: sender, directory: directory}
}

func (a *EmailAdapter) Channel() notification.Channel {
	return notification.ChannelEmail
}

func (a *EmailAdapter) Send(ctx context.Context, n *notification.Notification) error {
	to, err := a.directory.EmailAddress(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("email: %w: %w", notification.ErrChannelUnavailable, err)
	}

	msg := email.Message{
		To:       to,
		Subject:  emailSubject(n),
		BodyHTML: emailBody(n),
		Tag:      "notification-" + string(n.Category),
	}
	if isEscalated(n) {
		msg.Tag = "escalation"
	}
	if err := a.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func emailSubject(n *notification.Notification) string {
	prefix := ""
	switch n.Priority {
	case notification.PriorityCritical:
		prefix = "[CRITICAL] "
	case notification.PriorityHigh:
		prefix = "[HIGH] "
	}
	if isEscalated(n) {
		prefix = "[ESCALATED] " + prefix
	}
	return prefix + n.Title
}

func emailBody(n *notification.Notification) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(n.Title))
	b.WriteString("</h2><p>")
	b.WriteString(html.EscapeString(n.Message))
	b.WriteString("</p>")
	if isEscalated(n) {
		fmt.Fprintf(&b, "<p><strong>This notification has been escalated (level %d) after failed or unacknowledged delivery.</strong></p>", n.EscalationLevel)
	}
	fmt.Fprintf(&b, "<p><small>Category: %s · Priority: %s · ID: %s</small></p>",
		html.EscapeString(string(n.Category)), html.EscapeString(string(n.Priority)), html.EscapeString(n.ID))
	return b.String()
}

func isEscalated(n *notification.Notification) bool {
	if n.Payload == nil {
		return false
	}
	escalated, _ := n.Payload["escalated"].(bool)
	return escalated
}
