package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/staffcal/staffcal/pkg/logging"
)

// EmailSender delivers a change notice to the scheduling inbox. The service
// treats a nil sender as "email disabled" and only logs.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a plain-text notice. Change mail carries no markup; the
// calendar itself is the source of truth.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// SendGridSender delivers notices through the SendGrid API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *logging.Logger
}

// NewSendGridSender returns a sender, or nil when no API key is configured
// so callers fall through to log-only mode.
func NewSendGridSender(apiKey, fromEmail, fromName string, logger *logging.Logger) *SendGridSender {
	if apiKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if fromName == "" {
		fromName = "StaffCal"
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
		logger: logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	to := mail.NewEmail("", msg.To)
	m := mail.NewSingleEmail(s.from, msg.Subject, to, msg.Body, msg.Body)

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}

	s.logger.Debug("notify: change notice sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
