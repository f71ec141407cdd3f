package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	s := GetSnapshot()

	IncJobProcessed()
	IncMailSent()
	IncMailFailed()
	IncUnresolvedRecipient()
	IncUserAdded()
	SetLastPoll(time.Unix(123456789, 0))

	s2 := GetSnapshot()
	if s2.JobsProcessed != s.JobsProcessed+1 {
		t.Fatalf("expected jobs_processed to increment by 1, got %d", s2.JobsProcessed)
	}
	if s2.MailsSent != s.MailsSent+1 {
		t.Fatalf("expected mails_sent to increment by 1, got %d", s2.MailsSent)
	}
	if s2.MailsFailed != s.MailsFailed+1 {
		t.Fatalf("expected mails_failed to increment by 1, got %d", s2.MailsFailed)
	}
	if s2.UnresolvedRecipients != s.UnresolvedRecipients+1 {
		t.Fatalf("expected unresolved_recipients to increment by 1, got %d", s2.UnresolvedRecipients)
	}
	if s2.UsersAdded != s.UsersAdded+1 {
		t.Fatalf("expected users_added to increment by 1, got %d", s2.UsersAdded)
	}
	if s2.Polls != s.Polls+1 {
		t.Fatalf("expected polls to increment by 1, got %d", s2.Polls)
	}
	if s2.LastPoll != 123456789 {
		t.Fatalf("expected last poll timestamp 123456789, got %d", s2.LastPoll)
	}
	if s2.LastPollHuman == "" {
		t.Fatal("expected non-empty LastPollHuman")
	}
}

func TestObserveDispatchDuration(t *testing.T) {
	// Just verify the function doesn't panic
	ObserveDispatchDuration(150 * time.Millisecond)
	ObserveDispatchDuration(3 * time.Second)
}

func TestMuxServesStatusAndMetrics(t *testing.T) {
	IncMailSent()
	srv := httptest.NewServer(Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	var snap StatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("invalid status payload: %v", err)
	}
	if snap.MailsSent == 0 {
		t.Fatalf("expected mails_sent > 0 in status, got %+v", snap)
	}

	resp2, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp2.Body.Close()
	body, err := io.ReadAll(resp2.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "notifier_deliveries_total") {
		t.Fatalf("expected notifier_deliveries_total in exposition")
	}
}
