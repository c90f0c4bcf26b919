// Package relay bridges chat platforms (Slack, Discord) to the claude CLI.
// It routes inbound chat messages to per-thread sessions, runs the CLI with
// conversational context, and relays results back to the platform.
package relay

import (
	"context"
	"time"
)

// MsgTypeText is the only inbound message type the router executes on;
// rich/media messages are dropped.
const MsgTypeText = "text"

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and translation
// between platform events and the normalized message types below.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}

// InboundMessage is the normalized form of a platform message event.
// Adapters fill what the platform provides; the router defaults the rest.
type InboundMessage struct {
	Platform   string    // e.g. "slack", "discord"
	MessageID  string    // platform-specific message identifier
	ChatID     string    // chat thread identifier (session affiliation key)
	SenderID   string    // platform-specific sender identifier
	SenderName string    // human-readable sender name (may be empty)
	Text       string    // raw message text
	MsgType    string    // "text" for plain text; anything else is dropped
	Timestamp  time.Time // when the message was sent
}

// Card is a styled reply with a title and a markdown body.
type Card struct {
	Title    string
	Markdown string
}

// OutboundMessage represents a reply to be sent to the chat platform.
// When Card is nil the message is plain text.
type OutboundMessage struct {
	ChatID  string // target chat thread
	ReplyTo string // message ID to reply to; empty for a top-level message
	Text    string
	Card    *Card
}
