package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Tiliavir/fleet-timesheet/internal/api"
	"github.com/Tiliavir/fleet-timesheet/internal/timesheet"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{59, "59s"},
		{90, "1m 30s"},
		{3600, "1h 0m 0s"},
		{7322, "2h 2m 2s"},
		{86400, "24h 0m 0s"},
	}
	for _, tt := range tests {
		got := formatElapsed(tt.seconds)
		if got != tt.want {
			t.Errorf("formatElapsed(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{api.ErrAuthenticationRequired, 1},
		{fmt.Errorf("loading trips: %w", api.ErrAuthenticationRequired), 1},
		{api.ErrInvalidCredentials, 1},
		{&timesheet.ValidationError{Message: "no valid assignments"}, 1},
		{timesheet.ErrNotReady, 1},
		{context.Canceled, 1},
		{&api.HTTPError{StatusCode: 500}, 2},
		{errors.New("disk full"), 2},
	}
	for _, tt := range tests {
		got := exitCode(tt.err)
		if got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
