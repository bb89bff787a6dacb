// Package email provides the transport behind the email delivery channel:
// a Sender interface with a Postmark-backed production implementation and a
// logging DevSender for development and tests.
package email
