// Package mailer delivers plain emails through a pluggable transport.
//
// Transports classify their failures: authentication and connectivity
// problems wrap ErrAuth or ErrConnection and are reported by IsTransient,
// everything else is terminal for that attempt.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
)

var (
	ErrNoRecipient = errors.New("mailer: message has no recipient")
	ErrNoSubject   = errors.New("mailer: message has no subject")

	// ErrAuth marks a transport authentication failure (SMTP 530/534/535, HTTP 401/403).
	ErrAuth = errors.New("mailer: authentication failed")
	// ErrConnection marks a failure to reach the transport.
	ErrConnection = errors.New("mailer: connection failed")
)

// DefaultFrom is used when neither the message nor the transport sets a sender.
const DefaultFrom = `"Task Manager" <no-reply@example.com>`

// Message is a fully composed email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m *Message) Validate() error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if m.Subject == "" {
		return ErrNoSubject
	}
	return nil
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg *Message) (Delivery, error)
}

// Verifier is implemented by transports that can check their credentials
// without sending anything.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Delivery describes an accepted message.
type Delivery struct {
	MessageID string
	Transport string
}

// IsTransient reports whether a send failure is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrConnection) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Transient wraps err with kind (ErrAuth or ErrConnection) keeping both in the chain.
func Transient(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// Recipient formats name and address as an RFC 5322 address.
// An empty address yields an empty string.
func Recipient(name, address string) string {
	if address == "" {
		return ""
	}
	if name == "" {
		return address
	}
	return (&mail.Address{Name: name, Address: address}).String()
}
