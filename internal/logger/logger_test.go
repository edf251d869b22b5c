package logger_test

import (
	"testing"

	"quotabot/internal/logger"
)

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string untouched", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact length untouched", input: "hello", maxLen: 5, want: "hello"},
		{name: "long string gets ellipsis", input: "hello world", maxLen: 8, want: "hello..."},
		{name: "tiny limit", input: "hello", maxLen: 2, want: "..."},
		{name: "empty string", input: "", maxLen: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := logger.TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if log := logger.NewLogger(level, true); log == nil {
			t.Errorf("NewLogger(%q) returned nil", level)
		}
	}
}
