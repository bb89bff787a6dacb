package delivery

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// ChatMessage is the structured payload a chat transport posts. Chat
// surfaces render fields, not a single concatenated string.
type ChatMessage struct {
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Recipient string         `json:"recipient"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Location  string         `json:"location,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ChatPoster is the transport collaborator for chat delivery (Slack,
// Teams, Mattermost webhook clients all fit).
type ChatPoster interface {
	PostMessage(ctx context.Context, msg ChatMessage) error
}

// ChatPosterFunc adapts a function to the ChatPoster interface.
type ChatPosterFunc func(ctx context.Context, msg ChatMessage) error

func (f ChatPosterFunc) PostMessage(ctx context.Context, msg ChatMessage) error {
	return f(ctx, msg)
}

// ChatAdapter delivers through a chat poster with structured fields.
type ChatAdapter struct {
	poster ChatPoster
}

func NewChatAdapter(poster ChatPoster) *ChatAdapter {
	return &ChatAdapter{poster: poster}
}

func (a *ChatAdapter) Channel() notification.Channel {
	return notification.ChannelChat
}

func (a *ChatAdapter) Send(ctx context.Context, n *notification.Notification) error {
	msg := ChatMessage{
		Type:      string(n.Category),
		Severity:  string(n.Priority),
		Recipient: n.RecipientID,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Payload,
	}
	if n.Payload != nil {
		if location, ok := n.Payload["location"].(string); ok {
			msg.Location = location
		}
	}
	if err := a.poster.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
