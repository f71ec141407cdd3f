package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rszczygielski/notification-manager/internal/config"
	"github.com/rszczygielski/notification-manager/internal/contacts"
	"github.com/rszczygielski/notification-manager/internal/mailer"
	"github.com/rszczygielski/notification-manager/internal/poller"
	"github.com/rszczygielski/notification-manager/internal/registry"
)

// This integration test is skipped by default. To run it locally, set
// RUN_SMTP_INTEGRATION=1 together with NOTIFIER_SMTP_HOST, NOTIFIER_SMTP_USER,
// NOTIFIER_SMTP_PASS and SMOKE_RECIPIENT. It sends one real email through the
// configured relay by dropping a notification file into a polled directory.
func TestPollerDeliversThroughSMTP(t *testing.T) {
	if os.Getenv("RUN_SMTP_INTEGRATION") != "1" {
		t.Skip("skipping integration test; set RUN_SMTP_INTEGRATION=1 to enable")
	}
	recipient := os.Getenv("SMOKE_RECIPIENT")
	if recipient == "" {
		t.Fatal("SMOKE_RECIPIENT must be set")
	}

	cfg := config.DefaultConfig()
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("invalid environment: %v", err)
	}
	cfg.MailTransport = config.TransportSMTP
	sender, err := mailer.New(cfg)
	if err != nil {
		t.Fatalf("smtp transport: %v", err)
	}

	dir := t.TempDir()
	book, err := contacts.Open(filepath.Join(dir, "contacts.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Add(contacts.Contact{FirstName: "Smoke", LastName: "Test", Emails: []string{recipient}}); err != nil {
		t.Fatal(err)
	}
	store := registry.New(filepath.Join(dir, "active_users.txt"))
	if outcome, err := store.AddUser("Smoke", "Test", book); err != nil || outcome != registry.Added {
		t.Fatalf("activate smoke user: %v %v", outcome, err)
	}

	jobs := filepath.Join(dir, "notifications")
	if err := os.Mkdir(jobs, 0o755); err != nil {
		t.Fatal(err)
	}
	job := filepath.Join(jobs, "notification-manager smoke test")
	if err := os.WriteFile(job, []byte("sent by the smtp integration test"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := poller.New(poller.Options{Dir: jobs, Sender: cfg.SenderAddress}, store, book, sender)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := p.PollOnce(ctx)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one job processed, got %d", n)
	}
	if _, err := os.Stat(job); !os.IsNotExist(err) {
		t.Fatalf("job file should be consumed, stat err=%v", err)
	}
}
