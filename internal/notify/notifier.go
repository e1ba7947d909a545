package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers a single message to a recipient address. Delivery is
// fire-and-forget: the booking core never blocks on it and tolerates
// failures.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Stands in for a real mail/SMS sender in dev and test environments.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.log.Info().
		Str("to", recipient).
		Str("subject", subject).
		Str("body", body).
		Msg("notification")
	return nil
}
