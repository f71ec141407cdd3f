// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting notification-manager runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 1. Internal State (Source of Truth)
var (
	jobsProcessed int64
	mailsSent     int64
	mailsFailed   int64
	unresolved    int64
	usersAdded    int64
	polls         int64
	lastPoll      int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	promJobs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_jobs_processed_total",
			Help: "Total notification files dispatched and removed",
		},
	)
	promDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Per-recipient delivery outcomes",
		},
		[]string{"outcome"},
	)
	promUsersAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_active_users_added_total",
			Help: "Total users added to the active set",
		},
	)
	promPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_polls_total",
			Help: "Total scans of the notification directory",
		},
	)
	promDispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_dispatch_duration_seconds",
			Help:    "Duration of broadcasting one notification to all active users",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	promLastPoll = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last directory scan",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promJobs,
		promDeliveries,
		promUsersAdded,
		promPolls,
		promDispatchDuration,
		promLastPoll,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncJobProcessed counts one consumed notification file.
func IncJobProcessed() {
	atomic.AddInt64(&jobsProcessed, counterInc)
	promJobs.Inc()
}

// IncMailSent counts one successful per-recipient send.
func IncMailSent() {
	atomic.AddInt64(&mailsSent, counterInc)
	promDeliveries.WithLabelValues("sent").Inc()
}

// IncMailFailed counts one per-recipient send the mail transport rejected.
func IncMailFailed() {
	atomic.AddInt64(&mailsFailed, counterInc)
	promDeliveries.WithLabelValues("send_failed").Inc()
}

// IncUnresolvedRecipient counts an active user without a usable address.
func IncUnresolvedRecipient() {
	atomic.AddInt64(&unresolved, counterInc)
	promDeliveries.WithLabelValues("unresolved_recipient").Inc()
}

// IncUserAdded counts one user added to the active set.
func IncUserAdded() {
	atomic.AddInt64(&usersAdded, counterInc)
	promUsersAdded.Inc()
}

// ObserveDispatchDuration records how long one broadcast took.
func ObserveDispatchDuration(d time.Duration) {
	promDispatchDuration.Observe(d.Seconds())
}

// SetLastPoll counts a directory scan and stores its time.
func SetLastPoll(t time.Time) {
	atomic.AddInt64(&polls, counterInc)
	atomic.StoreInt64(&lastPoll, t.Unix())
	promPolls.Inc()
	promLastPoll.Set(float64(t.Unix()))
}

// 4. JSON Snapshot Struct

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	JobsProcessed        int64  `json:"jobs_processed"`
	MailsSent            int64  `json:"mails_sent"`
	MailsFailed          int64  `json:"mails_failed"`
	UnresolvedRecipients int64  `json:"unresolved_recipients"`
	UsersAdded           int64  `json:"users_added"`
	Polls                int64  `json:"polls"`
	LastPoll             int64  `json:"last_poll_timestamp"`
	LastPollHuman        string `json:"last_poll_human"`
}

// GetSnapshot returns the current values of all internal counters.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastPoll)
	return StatsSnapshot{
		JobsProcessed:        atomic.LoadInt64(&jobsProcessed),
		MailsSent:            atomic.LoadInt64(&mailsSent),
		MailsFailed:          atomic.LoadInt64(&mailsFailed),
		UnresolvedRecipients: atomic.LoadInt64(&unresolved),
		UsersAdded:           atomic.LoadInt64(&usersAdded),
		Polls:                atomic.LoadInt64(&polls),
		LastPoll:             ts,
		LastPollHuman:        time.Unix(ts, 0).Format(time.RFC3339),
	}
}

// 5. Handlers

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as
// a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}

// Mux returns the metrics endpoints mounted on /metrics and /status.
func Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", PromHandler())
	mux.Handle("/status", JSONHandler())
	return mux
}
