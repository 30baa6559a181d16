package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupWithWriter_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", &buf)
	logger.Info().Str("component", "test").Msg("hello")

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"component":"test"`) {
		t.Fatalf("expected JSON log line, got %q", line)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level=%v want info", logger.GetLevel())
	}
}

func TestSetupWithWriter_DevelopmentIsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("development", &buf)
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("level=%v want debug", logger.GetLevel())
	}
	logger.Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug message in console output, got %q", buf.String())
	}
}

func TestNew_LevelOverride(t *testing.T) {
	tests := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"production", "debug", zerolog.DebugLevel},
		{"development", "warn", zerolog.WarnLevel},
		{"production", "nonsense", zerolog.InfoLevel},
		{"test", "", zerolog.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Options{Environment: tt.env, Level: tt.level, Out: &buf})
			if logger.GetLevel() != tt.want {
				t.Fatalf("level=%v want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_TagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Environment: "production", Out: &buf})
	logger.Info().Msg("x")
	if !strings.Contains(buf.String(), `"service":"tekkin"`) {
		t.Fatalf("missing service field: %q", buf.String())
	}
}
