package email

import (
	"context"
	"regexp"
)

// Sender sends a single transactional email. It is the transport behind the
// email channel adapter.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound email.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the message has a deliverable recipient and content.
func (m Message) Validate() error {
	if m.To == "" || !emailRegex.MatchString(m.To) {
		return ErrInvalidRecipient
	}
	if m.Subject == "" {
		return ErrEmptySubject
	}
	if m.BodyHTML == "" {
		return ErrEmptyBody
	}
	return nil
}

// Config holds email transport configuration.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"EMAIL_SENDER,required"`
	ReplyToEmail         string `env:"EMAIL_REPLY_TO"`
}
