// Package mailer provides the mail transports notifications are delivered
// through: SMTP, an HTTP mail API, and a log-only dry run.
package mailer

import (
	"context"

	"github.com/rszczygielski/notification-manager/internal/config"
	"github.com/rszczygielski/notification-manager/internal/errors"
)

// Sender is the interface all mail transports implement. One call delivers
// one message to one recipient; retrying is left to the caller.
type Sender interface {
	Send(ctx context.Context, from, to, subject, body string) error
	Name() string
}

// New builds the transport selected by cfg.MailTransport, throttled to
// cfg.MailRatePerMinute when set.
func New(cfg *config.Config) (Sender, error) {
	s, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	return Throttle(s, cfg.MailRatePerMinute), nil
}

func newTransport(cfg *config.Config) (Sender, error) {
	switch cfg.MailTransport {
	case config.TransportSMTP:
		if cfg.SMTPHost == "" {
			return nil, errors.WithHint(errors.New("smtp transport needs a host"), "set NOTIFIER_SMTP_HOST or smtp_host")
		}
		return NewSMTP(SMTPOptions{
			Host:               cfg.SMTPHost,
			Port:               cfg.SMTPPort,
			User:               cfg.SMTPUser,
			Pass:               cfg.SMTPPass,
			InsecureSkipVerify: cfg.SMTPInsecureSkipVerify,
			SenderName:         cfg.SenderName,
		}), nil
	case config.TransportHTTP:
		if cfg.MailAPIURL == "" {
			return nil, errors.WithHint(errors.New("http transport needs a mail API URL"), "set NOTIFIER_MAIL_API_URL or mail_api_url")
		}
		return &HTTP{URL: cfg.MailAPIURL, Token: cfg.MailAPIToken}, nil
	case config.TransportLog:
		return &Log{}, nil
	}
	return nil, errors.Newf("unknown mail transport %q", cfg.MailTransport)
}
