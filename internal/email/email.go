// Package email renders order notification emails and delivers them
// through SMTP or Postmark.
package email

import "context"

// Email represents an email message to be sent.
type Email struct {
	To       []string          // Recipient email addresses
	From     string            // Sender address, may include a display name
	Subject  string            // Email subject
	TextBody string            // Plain text body
	HTMLBody string            // HTML body (optional)
	Headers  map[string]string // Custom headers (optional)
}

// Sender defines the interface for sending emails.
type Sender interface {
	// Send sends an email message.
	// Returns the message ID from the email provider (if available).
	Send(ctx context.Context, email *Email) (string, error)
}
