// Package resend is a mailer transport backed by the Resend HTTP API.
package resend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/resend/resend-go/v3"

	"taskmanager/internal/mailer"
)

type Config struct {
	APIKey string
	From   string
}

// Sender implements mailer.Sender using the Resend API.
type Sender struct {
	client *resend.Client
	config Config
}

func New(cfg Config) *Sender {
	if cfg.From == "" {
		cfg.From = mailer.DefaultFrom
	}
	return &Sender{
		client: resend.NewClient(cfg.APIKey),
		config: cfg,
	}
}

func (s *Sender) Send(ctx context.Context, msg *mailer.Message) (mailer.Delivery, error) {
	if err := msg.Validate(); err != nil {
		return mailer.Delivery{}, err
	}

	from := msg.From
	if from == "" {
		from = s.config.From
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	resp, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return mailer.Delivery{}, classify(fmt.Errorf("resend: failed to send email: %w", err))
	}

	d := mailer.Delivery{Transport: "resend"}
	if resp != nil {
		d.MessageID = resp.Id
	}
	return d, nil
}

// classify marks network failures and rejected API keys as transient.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return mailer.Transient(mailer.ErrConnection, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "api key") || strings.Contains(msg, "401") || strings.Contains(msg, "403") {
		return mailer.Transient(mailer.ErrAuth, err)
	}
	return err
}
