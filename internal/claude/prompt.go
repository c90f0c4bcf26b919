package claude

import (
	"fmt"
	"strings"

	"github.com/zulandar/ccbridge/internal/session"
)

// historyWindow is the maximum number of prior messages forwarded as context.
// Older turns are dropped, trading recall for bounded prompt size.
const historyWindow = 20

// BuildPrompt composes a prompt from a session's prior history and the
// current request. With no history the prompt is returned unchanged;
// otherwise the last historyWindow messages are rendered oldest-first.
func BuildPrompt(sess *session.Session, prompt string) string {
	if len(sess.Messages) == 0 {
		return prompt
	}

	recent := sess.Messages
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	lines := make([]string, 0, len(recent))
	for _, msg := range recent {
		label := "Assistant"
		if msg.Role == session.RoleUser {
			label = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, msg.Content))
	}

	return fmt.Sprintf("Previous conversation context:\n%s\n\nCurrent request: %s",
		strings.Join(lines, "\n\n"), prompt)
}
