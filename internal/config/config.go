package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mail transports understood by the mailer package.
const (
	TransportSMTP = "smtp"
	TransportHTTP = "http"
	TransportLog  = "log"
)

// DefaultPollInterval is the pause between two scans of the notification directory.
const DefaultPollInterval = 100 * time.Millisecond

// DefaultSettleTime is how long a notification file must stay unmodified
// before it is picked up.
const DefaultSettleTime = 250 * time.Millisecond

// Config holds runtime configuration for notification-manager
type Config struct {
	// Backing files and the watched directory
	ContactsFile    string `json:"contacts_file" yaml:"contacts_file"`
	ActiveUsersFile string `json:"active_users_file" yaml:"active_users_file"`
	NotificationDir string `json:"notification_dir" yaml:"notification_dir"`

	// Envelope sender used for every dispatched notification in polling mode
	SenderAddress string `json:"sender_address" yaml:"sender_address"`
	SenderName    string `json:"sender_name" yaml:"sender_name"`

	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	// WatchEvents wakes the poller early when files in NotificationDir change
	WatchEvents bool `json:"watch_events" yaml:"watch_events"`
	// SettleTime leaves files that were modified more recently for a later scan
	SettleTime time.Duration `json:"settle_time" yaml:"settle_time"`

	MailTransport string `json:"mail_transport" yaml:"mail_transport"` // "smtp", "http", "log"
	// MailRatePerMinute caps outgoing messages across all transports; 0 disables the cap
	MailRatePerMinute int `json:"mail_rate_per_minute" yaml:"mail_rate_per_minute"`

	SMTPHost               string `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort               int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPUser               string `json:"smtp_user" yaml:"smtp_user"`
	SMTPPass               string `json:"smtp_pass" yaml:"smtp_pass"`
	SMTPInsecureSkipVerify bool   `json:"smtp_insecure_skip_verify" yaml:"smtp_insecure_skip_verify"`

	// HTTP mail API (transactional mail providers)
	MailAPIURL   string `json:"mail_api_url" yaml:"mail_api_url"`
	MailAPIToken string `json:"mail_api_token" yaml:"mail_api_token"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file"`

	// Metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort    int  `json:"metrics_port" yaml:"metrics_port"`
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		ContactsFile:    "contacts.yaml",
		ActiveUsersFile: "active_users.txt",
		NotificationDir: "notifications",
		SenderName:      "Notification Manager",
		PollInterval:    DefaultPollInterval,
		WatchEvents:     true,
		SettleTime:      DefaultSettleTime,
		MailTransport:   TransportSMTP,
		SMTPPort:        587,
		LogLevel:        "info",

		// Metrics defaults (opt-in)
		MetricsEnabled: false,
		MetricsPort:    9091,
	}
}

// Validate returns a list of configuration warnings. A non-positive poll
// interval is reset to the default. An unknown mail transport is reported but
// kept, so building the mailer fails on it.
func (c *Config) Validate() []string {
	var warnings []string
	if c.PollInterval <= 0 {
		warnings = append(warnings, fmt.Sprintf("poll interval %v is not positive, using %v", c.PollInterval, DefaultPollInterval))
		c.PollInterval = DefaultPollInterval
	}
	if c.SettleTime < 0 {
		warnings = append(warnings, fmt.Sprintf("settle time %v is negative, using %v", c.SettleTime, DefaultSettleTime))
		c.SettleTime = DefaultSettleTime
	}
	c.MailTransport = strings.ToLower(c.MailTransport)
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.SenderAddress == "", "sender address is empty; polling mode will send without a From address"},
		{c.MailTransport == TransportSMTP && c.SMTPHost == "", "smtp transport selected but smtp host is missing"},
		{c.MailTransport == TransportSMTP && c.SMTPUser != "" && c.SMTPPass == "", "smtp user provided but password is missing"},
		{c.MailTransport == TransportHTTP && c.MailAPIURL == "", "http transport selected but mail API URL is missing"},
		{c.SMTPInsecureSkipVerify, "smtp TLS certificate verification is disabled"},
		{c.MailRatePerMinute < 0, "mail rate per minute is negative; sending is not throttled"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	switch c.MailTransport {
	case TransportSMTP, TransportHTTP, TransportLog:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown mail transport %q", c.MailTransport))
	}
	return warnings
}

// LoadConfigFromFile loads config from a YAML/JSON file on top of the defaults
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves the effective configuration: defaults, then the file named by
// NOTIFIER_CONFIG (if set), then environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if p := os.Getenv("NOTIFIER_CONFIG"); p != "" {
		c, err := LoadConfigFromFile(p)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
