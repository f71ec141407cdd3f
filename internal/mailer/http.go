package mailer

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rszczygielski/notification-manager/internal/errors"
)

// HTTP posts each message as JSON to a transactional mail API.
type HTTP struct {
	URL   string
	Token string
	// Client defaults to a client with a 10s timeout when nil
	Client *resty.Client
}

type httpMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Name returns the transport name.
func (h *HTTP) Name() string { return "http" }

// Send posts one message. Any non-2xx response is an error.
func (h *HTTP) Send(ctx context.Context, from, to, subject, body string) error {
	client := h.Client
	if client == nil {
		client = resty.New().SetTimeout(10 * time.Second)
	}
	req := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(httpMessage{From: from, To: to, Subject: subject, Body: body})
	if h.Token != "" {
		req.SetAuthToken(h.Token)
	}

	resp, err := req.Post(h.URL)
	if err != nil {
		return errors.Wrap(err, "mail api request")
	}
	if !resp.IsSuccess() {
		return errors.Newf("mail api returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
