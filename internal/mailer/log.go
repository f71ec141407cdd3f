package mailer

import (
	"context"

	"github.com/rszczygielski/notification-manager/internal/logging"
)

// Log is a dry-run transport: it records what would be sent and always succeeds.
type Log struct{}

// Name returns the transport name.
func (l *Log) Name() string { return "log" }

// Send logs the message envelope and body size.
func (l *Log) Send(ctx context.Context, from, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logging.Get().Info().
		Str("from", from).
		Str("recipient", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("dry run: mail not sent")
	return nil
}
