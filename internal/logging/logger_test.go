package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"default level", "", zerolog.InfoLevel},
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
		{"case insensitive", "DEBUG", zerolog.DebugLevel},
		{"unknown falls back to info", "verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup, err := Init("", tt.level)
			if err != nil {
				t.Fatalf("Init() failed: %v", err)
			}
			defer cleanup()

			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("expected level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestInitWithFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "logs", "notifier.log")

	cleanup, err := Init(logPath, "info")
	if err != nil {
		t.Fatalf("Init() with file failed: %v", err)
	}
	Get().Info().Str("subject", "alert1.txt").Msg("job dispatched")
	cleanup()

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created at %s: %v", logPath, err)
	}
	if !strings.Contains(string(b), `"subject":"alert1.txt"`) {
		t.Errorf("expected structured field in log file, got %q", b)
	}
}

func TestInitConsole(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	cleanup, err := InitConsole(logPath, "warn")
	if err != nil {
		t.Fatalf("InitConsole() failed: %v", err)
	}
	defer cleanup()

	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %v", zerolog.GlobalLevel())
	}
	Get().Warn().Msg("console test")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Errorf("log file was not created at %s", logPath)
	}
}

func TestGetBeforeInit(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get() returned nil logger")
	}
	// the zero-config logger must be usable
	Get().Info().Msg("test")
}
