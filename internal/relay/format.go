package relay

import (
	"fmt"
	"time"
)

// truncationMarker is appended when a reply is cut to fit a platform limit.
const truncationMarker = "\n\n... (truncated)"

// truncateReply caps text at maxLen characters, appending an explicit
// truncation marker when anything was cut.
func truncateReply(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + truncationMarker
}

// truncate returns s cut to maxLen with "..." appended if needed. Used for
// log lines only.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// formatDuration renders a duration for chat display: milliseconds under a
// second, seconds under a minute, minutes otherwise.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fmin", d.Minutes())
	}
}
