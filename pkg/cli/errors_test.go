package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		field, message string
		want           string
	}{
		{"retention.continuous_schedule", "invalid cron expression", "config error in retention.continuous_schedule: invalid cron expression"},
		{"", "failed to load config", "config error: failed to load config"},
	}

	for _, tt := range tests {
		if got := NewConfigError(tt.field, tt.message).Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestCommandError(t *testing.T) {
	cause := errors.New("store unavailable")
	err := NewCommandError("retention cleanup", cause)

	if err.Error() != "command retention cleanup failed: store unavailable" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("CommandError does not unwrap to its cause")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", NewConfigError("", "bad"), ExitConfig},
		{"wrapped config", fmt.Errorf("startup: %w", NewConfigError("", "bad")), ExitConfig},
		{"command", NewCommandError("run", errors.New("boom")), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
