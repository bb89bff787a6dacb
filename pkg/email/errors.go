package email

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid email configuration")
	ErrInvalidRecipient = errors.New("invalid recipient email address")
	ErrEmptySubject     = errors.New("email subject is required")
	ErrEmptyBody        = errors.New("email body is required")
	ErrSendFailed       = errors.New("failed to send email")
)
