package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - NOTIFIER_CONTACTS_FILE, NOTIFIER_ACTIVE_USERS_FILE, NOTIFIER_NOTIFICATION_DIR
// - NOTIFIER_SENDER_ADDRESS, NOTIFIER_SENDER_NAME
// - NOTIFIER_POLL_INTERVAL, NOTIFIER_SETTLE_TIME (durations, e.g. "250ms")
// - NOTIFIER_WATCH_EVENTS (bool)
// - NOTIFIER_MAIL_TRANSPORT ("smtp", "http", "log"), NOTIFIER_MAIL_RATE_PER_MINUTE (int)
// - NOTIFIER_SMTP_HOST, NOTIFIER_SMTP_PORT, NOTIFIER_SMTP_USER, NOTIFIER_SMTP_PASS
// - NOTIFIER_SMTP_INSECURE_SKIP_VERIFY (bool)
// - NOTIFIER_MAIL_API_URL, NOTIFIER_MAIL_API_TOKEN
// - NOTIFIER_LOG_LEVEL, NOTIFIER_LOG_FILE
// - NOTIFIER_METRICS_ENABLED (bool), NOTIFIER_METRICS_PORT (int)
func ApplyEnvOverrides(cfg *Config) error {
	applyPathEnv(cfg)

	if err := applyPollingEnv(cfg); err != nil {
		return err
	}

	if err := applyMailEnv(cfg); err != nil {
		return err
	}

	if err := applyRuntimeEnv(cfg); err != nil {
		return err
	}
	return nil
}

func applyPathEnv(cfg *Config) {
	setStringEnv("NOTIFIER_CONTACTS_FILE", &cfg.ContactsFile)
	setStringEnv("NOTIFIER_ACTIVE_USERS_FILE", &cfg.ActiveUsersFile)
	setStringEnv("NOTIFIER_NOTIFICATION_DIR", &cfg.NotificationDir)
}

func applyPollingEnv(cfg *Config) error {
	if v := os.Getenv("NOTIFIER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFIER_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("NOTIFIER_SETTLE_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFIER_SETTLE_TIME: %w", err)
		}
		cfg.SettleTime = d
	}
	return setBoolEnv("NOTIFIER_WATCH_EVENTS", func(b bool) { cfg.WatchEvents = b })
}

// applyMailEnv consolidates sender and transport env parsing
func applyMailEnv(cfg *Config) error {
	setStringEnv("NOTIFIER_SENDER_ADDRESS", &cfg.SenderAddress)
	setStringEnv("NOTIFIER_SENDER_NAME", &cfg.SenderName)
	setStringEnv("NOTIFIER_MAIL_TRANSPORT", &cfg.MailTransport)
	setStringEnv("NOTIFIER_SMTP_HOST", &cfg.SMTPHost)
	setStringEnv("NOTIFIER_SMTP_USER", &cfg.SMTPUser)
	setStringEnv("NOTIFIER_SMTP_PASS", &cfg.SMTPPass)
	setStringEnv("NOTIFIER_MAIL_API_URL", &cfg.MailAPIURL)
	setStringEnv("NOTIFIER_MAIL_API_TOKEN", &cfg.MailAPIToken)
	if err := setIntEnv("NOTIFIER_SMTP_PORT", &cfg.SMTPPort); err != nil {
		return err
	}
	if err := setIntEnv("NOTIFIER_MAIL_RATE_PER_MINUTE", &cfg.MailRatePerMinute); err != nil {
		return err
	}
	return setBoolEnv("NOTIFIER_SMTP_INSECURE_SKIP_VERIFY", func(b bool) { cfg.SMTPInsecureSkipVerify = b })
}

// applyRuntimeEnv handles logging and metrics
func applyRuntimeEnv(cfg *Config) error {
	setStringEnv("NOTIFIER_LOG_LEVEL", &cfg.LogLevel)
	setStringEnv("NOTIFIER_LOG_FILE", &cfg.LogFile)
	if err := setBoolEnv("NOTIFIER_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b }); err != nil {
		return err
	}
	return setIntEnv("NOTIFIER_METRICS_PORT", &cfg.MetricsPort)
}

func setStringEnv(env string, dst *string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setIntEnv(env string, dst *int) error {
	if v := os.Getenv(env); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		*dst = n
	}
	return nil
}

// setBoolEnv is a small helper to parse boolean environment variables
func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}
