// Package session provides durable per-chat-thread state: a working directory
// and a bounded conversation history, persisted as JSON files in a per-user
// directory.
package session

import (
	"time"
)

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn within a session.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the durable state for one chat thread. A session is created
// lazily on the first message from an unseen chat and is never destroyed
// automatically; removal is an explicit operator action.
type Session struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	WorkDir   string    `json:"workDir"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
