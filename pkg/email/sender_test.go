package email_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/email"
)

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	valid := email.Message{To: "user@example.com", Subject: "Alert", BodyHTML: "<p>hi</p>"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		msg  email.Message
		want error
	}{
		{"missing recipient", email.Message{Subject: "s", BodyHTML: "b"}, email.ErrInvalidRecipient},
		{"malformed recipient", email.Message{To: "not-an-email", Subject: "s", BodyHTML: "b"}, email.ErrInvalidRecipient},
		{"missing subject", email.Message{To: "u@example.com", BodyHTML: "b"}, email.ErrEmptySubject},
		{"missing body", email.Message{To: "u@example.com", Subject: "s"}, email.ErrEmptyBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.msg.Validate(), tt.want)
		})
	}
}

func TestNewPostmarkClient_ConfigValidation(t *testing.T) {
	t.Parallel()

	base := email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "alerts@example.com",
	}

	_, err := email.NewPostmarkClient(base)
	require.NoError(t, err)

	missingServer := base
	missingServer.PostmarkServerToken = ""
	_, err = email.NewPostmarkClient(missingServer)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	badSender := base
	badSender.SenderEmail = "nope"
	_, err = email.NewPostmarkClient(badSender)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	badReplyTo := base
	badReplyTo.ReplyToEmail = "nope"
	_, err = email.NewPostmarkClient(badReplyTo)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	sender := email.NewDevSender(nil)
	err := sender.Send(context.Background(), email.Message{To: "u@example.com", Subject: "s", BodyHTML: "b"})
	require.NoError(t, err)

	err = sender.Send(context.Background(), email.Message{})
	assert.Error(t, err)
}
