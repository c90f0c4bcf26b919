package relay

import (
	"strings"
	"testing"
	"time"
)

func TestTruncateReply(t *testing.T) {
	if got := truncateReply("short", 100); got != "short" {
		t.Errorf("unmodified text changed: %q", got)
	}

	long := strings.Repeat("x", 150)
	got := truncateReply(long, 100)
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("truncated text missing marker: %q", got[len(got)-30:])
	}
	if !strings.HasPrefix(got, strings.Repeat("x", 100)) {
		t.Error("truncated text should keep the first maxLen chars")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{999 * time.Millisecond, "999ms"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{90 * time.Second, "1.5min"},
		{5 * time.Minute, "5.0min"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
