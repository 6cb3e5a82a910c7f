package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional - some servers allow unauthenticated relay
	Password string // optional
	From     string // default sender address
}

// SMTPSender implements Sender using go-mail.
// TLS mode is chosen from the port: 465 implicit TLS, 587 mandatory
// STARTTLS, anything else opportunistic.
type SMTPSender struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates an SMTP sender from a config struct.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		config: config,
		logger: logger,
	}
}

// Send sends an email via SMTP using go-mail.
func (s *SMTPSender) Send(ctx context.Context, email *Email) (string, error) {
	msg, err := s.buildMessage(email)
	if err != nil {
		return "", err
	}

	client, err := mail.NewClient(s.config.Host, s.buildClientOptions(30*time.Second)...)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("smtp: failed to send email",
			"subject", email.Subject,
			"host", s.config.Host,
			"error", err,
		)
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	s.logger.Debug("smtp: email sent", "subject", email.Subject)

	// SMTP doesn't return a message id reliably
	messageID := fmt.Sprintf("smtp-%d-%d", time.Now().UnixNano(), len(email.To))
	return messageID, nil
}

func (s *SMTPSender) buildMessage(email *Email) (*mail.Msg, error) {
	msg := mail.NewMsg()

	from := email.From
	if from == "" {
		from = s.config.From
	}
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFromAddress, err)
	}

	if len(email.To) == 0 {
		return nil, ErrNoRecipient
	}
	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToAddress, err)
	}

	msg.Subject(email.Subject)

	// Prefer HTML with text fallback, or just text
	if email.HTMLBody != "" && email.TextBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTMLBody)
	} else if email.HTMLBody != "" {
		msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
	}

	for key, value := range email.Headers {
		msg.SetGenHeader(mail.Header(key), value)
	}

	return msg, nil
}

// buildClientOptions returns go-mail client options based on configuration.
func (s *SMTPSender) buildClientOptions(timeout time.Duration) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(timeout),
	}

	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		// 25, or 1025 for Mailpit in development
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}

// TestConnection verifies SMTP connectivity and authentication without
// sending email. Used at startup so misconfiguration shows up in the logs.
func (s *SMTPSender) TestConnection(ctx context.Context) error {
	client, err := mail.NewClient(s.config.Host, s.buildClientOptions(10*time.Second)...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer client.Close()

	return nil
}
