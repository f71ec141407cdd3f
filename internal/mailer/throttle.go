package mailer

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/rszczygielski/notification-manager/internal/errors"
)

// Throttled spaces out calls to the wrapped transport so relays with a
// sending quota are not tripped by a large active-user set.
type Throttled struct {
	Sender
	limiter *rate.Limiter
}

// Throttle wraps s so that at most perMinute messages are sent per minute.
// A non-positive perMinute returns s unchanged.
func Throttle(s Sender, perMinute int) Sender {
	if perMinute <= 0 {
		return s
	}
	return &Throttled{
		Sender:  s,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

// Send waits for the limiter, then delegates.
func (t *Throttled) Send(ctx context.Context, from, to, subject, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "mail rate limit")
	}
	return t.Sender.Send(ctx, from, to, subject, body)
}
