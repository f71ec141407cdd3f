package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// parseLevel maps "debug", "info", "warn" and "error" (any case) to a zerolog
// level. Anything else falls back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init initializes the global logger for polling mode. If logFilePath is
// non-empty, logs are written to both stdout and the file.
func Init(logFilePath, level string) (func(), error) {
	zerolog.SetGlobalLevel(parseLevel(level))

	writers := []io.Writer{os.Stdout}
	f, err := openLogFile(logFilePath)
	if err != nil {
		return nil, err
	}
	if f != nil {
		writers = append(writers, f)
	}
	Log = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	return closer(f), nil
}

// InitConsole initializes the global logger for interactive mode. Output is
// human readable and goes to stderr so the menu on stdout is not interleaved
// with JSON lines.
func InitConsole(logFilePath, level string) (func(), error) {
	zerolog.SetGlobalLevel(parseLevel(level))

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}}
	f, err := openLogFile(logFilePath)
	if err != nil {
		return nil, err
	}
	if f != nil {
		writers = append(writers, f)
	}
	Log = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer(f), nil
}

func openLogFile(logFilePath string) (*os.File, error) {
	if logFilePath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	// 0640 keeps recipient addresses out of world-readable logs
	return os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
}

func closer(f *os.File) func() {
	return func() {
		if f != nil {
			_ = f.Close()
		}
	}
}

// Log is the package-global logger configured by Init
var Log = zerolog.Nop()

// Get returns a pointer to the package-global logger
func Get() *zerolog.Logger {
	return &Log
}
