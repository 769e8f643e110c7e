package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth", Transient(ErrAuth, errors.New("535")), true},
		{"connection", Transient(ErrConnection, errors.New("refused")), true},
		{"wrapped", fmt.Errorf("send: %w", ErrAuth), true},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"other", errors.New("550 mailbox unavailable"), false},
		{"validation", ErrNoRecipient, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientKeepsCause(t *testing.T) {
	cause := errors.New("535 bad credentials")
	err := Transient(ErrAuth, cause)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, cause)
}

func TestRecipient(t *testing.T) {
	assert.Empty(t, Recipient("Ada", ""))
	assert.Equal(t, "ada@example.com", Recipient("", "ada@example.com"))
	assert.Equal(t, `"Ada Lovelace" <ada@example.com>`, Recipient("Ada Lovelace", "ada@example.com"))
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, (&Message{Subject: "s"}).Validate(), ErrNoRecipient)
	assert.ErrorIs(t, (&Message{To: "a@b.c"}).Validate(), ErrNoSubject)
	assert.NoError(t, (&Message{To: "a@b.c", Subject: "s"}).Validate())
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML("Reminder for your task:\n\nsee https://example.com\nline two")
	require.NoError(t, err)
	assert.Contains(t, out, `<a href="https://example.com">`)
	assert.Contains(t, out, "<br")

	out, err = RenderHTML("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestLogSender(t *testing.T) {
	s := &LogSender{}
	d, err := s.Send(context.Background(), &Message{To: "a@b.c", Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "log", d.Transport)

	_, err = s.Send(context.Background(), &Message{Subject: "hi"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}
