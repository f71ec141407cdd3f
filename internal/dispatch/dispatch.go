// Package dispatch broadcasts one message to every active user, isolating
// failures per recipient.
package dispatch

import (
	"context"
	"time"

	"github.com/rszczygielski/notification-manager/internal/logging"
	"github.com/rszczygielski/notification-manager/internal/metrics"
	"github.com/rszczygielski/notification-manager/internal/registry"
)

// Outcome is what happened to one recipient of a broadcast.
type Outcome int

const (
	Sent Outcome = iota
	UnresolvedRecipient
	SendFailed
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case UnresolvedRecipient:
		return "unresolved_recipient"
	case SendFailed:
		return "send_failed"
	}
	return "unknown"
}

// Directory resolves an active user to the address mail goes to.
type Directory interface {
	LookupDefaultEmail(firstName, lastName string) (string, error)
}

// MailSender delivers one message to one recipient.
type MailSender interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Result is the outcome for one user. Recipient is empty when the address
// could not be resolved; Err holds the lookup or send failure.
type Result struct {
	User      registry.User
	Recipient string
	Outcome   Outcome
	Err       error
}

// Dispatch sends body under subject from sender to each user in order. A
// failure for one user is recorded in its Result and never stops delivery to
// the rest. Nothing is retried.
func Dispatch(ctx context.Context, sender, subject, body string, users []registry.User, dir Directory, mail MailSender) []Result {
	start := time.Now()
	results := make([]Result, 0, len(users))
	for _, u := range users {
		results = append(results, deliver(ctx, sender, subject, body, u, dir, mail))
	}
	metrics.ObserveDispatchDuration(time.Since(start))

	sum := Summarize(results)
	logging.Get().Info().
		Str("subject", subject).
		Int("recipients", len(users)).
		Int("sent", sum.Sent).
		Int("unresolved", sum.Unresolved).
		Int("failed", sum.Failed).
		Msg("notification dispatched")
	return results
}

func deliver(ctx context.Context, sender, subject, body string, u registry.User, dir Directory, mail MailSender) Result {
	log := logging.Get().With().Str("user", u.String()).Str("subject", subject).Logger()

	addr, err := dir.LookupDefaultEmail(u.FirstName, u.LastName)
	if err != nil {
		metrics.IncUnresolvedRecipient()
		log.Warn().Err(err).Msg("cannot resolve recipient address, skipping")
		return Result{User: u, Outcome: UnresolvedRecipient, Err: err}
	}

	if err := mail.Send(ctx, sender, addr, subject, body); err != nil {
		metrics.IncMailFailed()
		log.Error().Err(err).Str("recipient", addr).Msg("send failed")
		return Result{User: u, Recipient: addr, Outcome: SendFailed, Err: err}
	}
	metrics.IncMailSent()
	log.Debug().Str("recipient", addr).Msg("mail sent")
	return Result{User: u, Recipient: addr, Outcome: Sent}
}

// Summary counts results by outcome.
type Summary struct {
	Sent       int
	Unresolved int
	Failed     int
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Outcome {
		case Sent:
			s.Sent++
		case UnresolvedRecipient:
			s.Unresolved++
		case SendFailed:
			s.Failed++
		}
	}
	return s
}

// Outcomes returns just the outcome of each result, in order.
func Outcomes(results []Result) []Outcome {
	out := make([]Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome
	}
	return out
}
