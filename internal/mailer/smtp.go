package mailer

import (
	"context"
	"crypto/tls"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/rszczygielski/notification-manager/internal/errors"
	"github.com/rszczygielski/notification-manager/internal/logging"
)

// dialer is the part of *gomail.Dialer the SMTP transport uses; tests swap it.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPOptions configures an SMTP transport.
type SMTPOptions struct {
	Host               string
	Port               int
	User, Pass         string
	InsecureSkipVerify bool
	// SenderName is shown next to the From address when set
	SenderName string
}

// SMTP sends mail through an SMTP relay, one connection per message.
type SMTP struct {
	dialer     dialer
	host       string
	port       int
	user       string
	senderName string
}

// NewSMTP creates an SMTP transport.
func NewSMTP(opts SMTPOptions) *SMTP {
	d := gomail.NewDialer(opts.Host, opts.Port, opts.User, opts.Pass)
	if opts.InsecureSkipVerify {
		logging.Get().Warn().Str("host", opts.Host).Msg("InsecureSkipVerify is enabled for the smtp TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
	}
	logging.Get().Info().Str("host", opts.Host).Int("port", opts.Port).Str("user", opts.User).Msg("smtp mail transport initialised")
	return &SMTP{dialer: d, host: opts.Host, port: opts.Port, user: opts.User, senderName: opts.SenderName}
}

// Name returns the transport name.
func (s *SMTP) Name() string { return "smtp" }

// Send delivers one message. An empty from falls back to the SMTP login.
func (s *SMTP) Send(ctx context.Context, from, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if from == "" {
		from = s.user
	}
	if from == "" {
		return errors.New("smtp: no sender address and no smtp user to fall back to")
	}
	msg := gomail.NewMessage()
	if s.senderName != "" {
		msg.SetAddressHeader("From", from, s.senderName)
	} else {
		msg.SetHeader("From", from)
	}
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody(contentType(body), body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return errors.Wrapf(err, "smtp %s:%d", s.host, s.port)
	}
	return nil
}

// contentType treats bodies that open with a tag as HTML, everything else as
// plain text. Notification files are usually plain text.
func contentType(body string) string {
	if strings.HasPrefix(strings.TrimSpace(body), "<") {
		return "text/html"
	}
	return "text/plain"
}
