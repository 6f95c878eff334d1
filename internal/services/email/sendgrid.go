// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers messages through the SendGrid v3 API.
type SendGridSender struct {
	client  *sendgrid.Client
	from    *sgmail.Email
	replyTo string
	sandbox bool
}

// NewSendGridSender creates a sender for the SendGrid settings in cfg.
func NewSendGridSender(cfg *config.EmailConfig) (*SendGridSender, error) {
	if cfg.SendGrid.APIKey == "" {
		return nil, fmt.Errorf("SendGrid API key is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from address is required")
	}

	return &SendGridSender{
		client:  sendgrid.NewSendClient(cfg.SendGrid.APIKey),
		from:    sgmail.NewEmail(cfg.FromName, cfg.From),
		replyTo: cfg.ReplyTo,
		sandbox: cfg.SendGrid.Sandbox,
	}, nil
}

// Send posts msg to SendGrid. Non-2xx responses are errors.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendWithContext(ctx, s.buildMessage(msg))
	if err != nil {
		return fmt.Errorf("sending email via sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *SendGridSender) buildMessage(msg Message) *sgmail.SGMailV3 {
	to := sgmail.NewEmail("", msg.To)
	message := sgmail.NewSingleEmail(s.from, msg.Subject, to, msg.Text, msg.HTML)

	if replyTo := firstNonEmpty(msg.ReplyTo, s.replyTo); replyTo != "" {
		message.SetReplyTo(sgmail.NewEmail("", replyTo))
	}

	if s.sandbox {
		ms := sgmail.NewMailSettings()
		ms.SetSandboxMode(sgmail.NewSetting(true))
		message.MailSettings = ms
	}

	return message
}
