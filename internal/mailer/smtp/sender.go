// Package smtp is a mailer transport speaking SMTP with STARTTLS or implicit TLS.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"taskmanager/internal/mailer"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	Host string
	Port int
	// Secure selects implicit TLS (usually port 465). Otherwise STARTTLS is
	// used when the server offers it.
	Secure             bool
	User               string
	Pass               string
	From               string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Sender implements mailer.Sender over SMTP. Each Send opens its own connection.
type Sender struct {
	cfg Config
}

func New(cfg Config) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.From == "" {
		cfg.From = mailer.DefaultFrom
	}
	return &Sender{cfg: cfg}
}

func (s *Sender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSConfig(&tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec // opt-in via SMTP_REJECT_UNAUTHORIZED=false
		}),
	}
	if s.cfg.Secure {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if s.cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.User),
			gomail.WithPassword(s.cfg.Pass),
		)
	}

	c, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: configure client: %w", err)
	}
	return c, nil
}

// Verify connects and authenticates without sending.
func (s *Sender) Verify(ctx context.Context) error {
	c, err := s.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return classify(err)
	}
	return classify(c.Close())
}

func (s *Sender) Send(ctx context.Context, msg *mailer.Message) (mailer.Delivery, error) {
	if err := msg.Validate(); err != nil {
		return mailer.Delivery{}, err
	}

	id := uuid.NewString() + "@" + s.cfg.Host
	m, err := s.message(id, msg)
	if err != nil {
		return mailer.Delivery{}, err
	}

	c, err := s.client()
	if err != nil {
		return mailer.Delivery{}, err
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return mailer.Delivery{}, classify(err)
	}
	return mailer.Delivery{MessageID: "<" + id + ">", Transport: "smtp"}, nil
}

// message builds the outgoing message: plain text, plus an HTML alternative when set.
func (s *Sender) message(id string, msg *mailer.Message) (*gomail.Msg, error) {
	from := msg.From
	if from == "" {
		from = s.cfg.From
	}

	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("smtp: invalid from %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp: invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetMessageIDWithValue(id)
	m.SetDate()
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// classify maps SMTP replies and network errors onto mailer's transient kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var sendErr *gomail.SendError
	if errors.As(err, &sendErr) {
		if kind := kindOf(sendErr.ErrorCode()); kind != nil {
			return mailer.Transient(kind, err)
		}
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if kind := kindOf(tpErr.Code); kind != nil {
			return mailer.Transient(kind, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) {
		return mailer.Transient(mailer.ErrConnection, err)
	}
	if strings.Contains(err.Error(), "SMTP AUTH failed") {
		return mailer.Transient(mailer.ErrAuth, err)
	}
	return err
}

func kindOf(code int) error {
	switch code {
	case 454, 530, 534, 535:
		return mailer.ErrAuth
	case 421:
		return mailer.ErrConnection
	}
	return nil
}
