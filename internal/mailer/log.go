package mailer

import (
	"context"
	"log/slog"
)

// LogSender is the transport used when no mail provider is configured.
// It logs the message and reports success.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg *Message) (Delivery, error) {
	if err := msg.Validate(); err != nil {
		return Delivery{}, err
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "mail not sent, transport unconfigured",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
	}
	return Delivery{Transport: "log"}, nil
}
