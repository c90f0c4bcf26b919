package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/ccbridge/internal/claude"
	"github.com/zulandar/ccbridge/internal/session"
)

const (
	// commandPrefix triggers built-in command handling.
	commandPrefix = "/cc"
	// replyMaxLen caps a single outbound reply body.
	replyMaxLen = 28000
	// errorMaxLen caps error text relayed to chat.
	errorMaxLen = 3000
	// defaultExecuteTimeout is the wall-clock budget per claude invocation.
	defaultExecuteTimeout = 5 * time.Minute
)

// Executor abstracts the claude CLI for testability.
type Executor interface {
	Execute(ctx context.Context, prompt string, opts claude.Options) claude.Result
	IsAvailable() bool
}

// dropReason classifies why an inbound message was discarded before routing.
type dropReason int

const (
	dropNone dropReason = iota
	dropUnparseable
	dropDuplicate
	dropNonText
	dropSelf
)

func (r dropReason) String() string {
	switch r {
	case dropUnparseable:
		return "unparseable"
	case dropDuplicate:
		return "duplicate"
	case dropNonText:
		return "non-text"
	case dropSelf:
		return "self"
	default:
		return "none"
	}
}

// Router classifies inbound chat messages and routes them: built-in "/cc"
// commands mutate or report session state; everything else is an execution
// request for the claude CLI. Requests for the same chat thread are
// serialized by a per-chat mutex; different chats run concurrently.
type Router struct {
	store          *session.Store
	exec           Executor
	adapter        Adapter
	botUserID      string // the bot's own user ID (to filter self-messages)
	defaultWorkDir string
	timeout        time.Duration
	out            io.Writer
	dedup          *Dedup

	mu        sync.Mutex
	chatLocks map[string]*sync.Mutex
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Store          *session.Store
	Executor       Executor
	Adapter        Adapter
	BotUserID      string        // bot's user ID for self-message filtering
	DefaultWorkDir string        // work dir for newly created sessions
	ExecuteTimeout time.Duration // defaults to defaultExecuteTimeout
	Out            io.Writer     // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("relay: router: session store is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("relay: router: executor is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: router: adapter is required")
	}
	timeout := opts.ExecuteTimeout
	if timeout <= 0 {
		timeout = defaultExecuteTimeout
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		store:          opts.Store,
		exec:           opts.Executor,
		adapter:        opts.Adapter,
		botUserID:      opts.BotUserID,
		defaultWorkDir: opts.DefaultWorkDir,
		timeout:        timeout,
		out:            out,
		dedup:          NewDedup(DedupTTL),
		chatLocks:      make(map[string]*sync.Mutex),
	}, nil
}

// Handle processes one inbound message end to end: normalize, dedup,
// type filter, self filter, then command dispatch or CLI execution.
// Each screening stage either passes the message on or drops it with a
// logged reason. Every failure past screening becomes a chat reply or
// a log line, never an error return.
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if reason := r.screen(&msg); reason != dropNone {
		fmt.Fprintf(r.out, "relay: router: drop [%s] msg=%s chat=%s\n",
			reason, msg.MessageID, msg.ChatID)
		return
	}

	text := strings.TrimSpace(msg.Text)
	fmt.Fprintf(r.out, "relay: router: recv [chat=%s sender=%s] %q\n",
		msg.ChatID, msg.SenderID, truncate(text, 80))

	// Serialize per chat thread so rapid messages cannot race on session
	// writes or run two subprocesses in the same work dir.
	lock := r.chatLock(msg.ChatID)
	lock.Lock()
	defer lock.Unlock()

	if strings.HasPrefix(text, commandPrefix) {
		r.handleCommand(ctx, msg, text)
		return
	}
	r.handleExecute(ctx, msg, text)
}

// screen normalizes the message in place and returns the first applicable
// drop reason, or dropNone if the message should be routed.
func (r *Router) screen(msg *InboundMessage) dropReason {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.MsgType == "" {
		msg.MsgType = MsgTypeText
	}
	if msg.MessageID == "" || msg.ChatID == "" {
		return dropUnparseable
	}
	if r.dedup.IsDuplicate(msg.MessageID) {
		return dropDuplicate
	}
	if msg.MsgType != MsgTypeText {
		return dropNonText
	}
	if r.botUserID != "" && msg.SenderID == r.botUserID {
		return dropSelf
	}
	return dropNone
}

// chatLock returns the mutex for a chat thread, creating it on first use.
func (r *Router) chatLock(chatID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.chatLocks[chatID]
	if !ok {
		l = &sync.Mutex{}
		r.chatLocks[chatID] = l
	}
	return l
}

// helpText is the static command reference sent for "/cc help".
const helpText = "**ccbridge Commands**\n\n" +
	"`/cc help` - Show this help\n" +
	"`/cc cd <path>` - Change working directory\n" +
	"`/cc pwd` - Show current directory\n" +
	"`/cc clear` - Clear conversation history\n" +
	"`/cc status` - Show session status\n\n" +
	"Just send any message without prefix to run it with the claude CLI!"

// handleCommand dispatches a "/cc" command and sends the response.
func (r *Router) handleCommand(ctx context.Context, msg InboundMessage, text string) {
	args := strings.Fields(strings.TrimSpace(strings.TrimPrefix(text, commandPrefix)))
	if len(args) == 0 {
		r.replyCard(ctx, msg, "Help", helpText)
		return
	}

	switch strings.ToLower(args[0]) {
	case "help":
		r.replyCard(ctx, msg, "Help", helpText)

	case "cd":
		path := strings.Join(args[1:], " ")
		if path == "" {
			r.replyText(ctx, msg, "Please specify a path: /cc cd <path>")
			return
		}
		sess, err := r.store.GetOrCreate(msg.ChatID, r.defaultWorkDir)
		if err != nil {
			r.replyText(ctx, msg, fmt.Sprintf("Error: %v", err))
			return
		}
		if err := r.store.SetWorkDir(sess, path); err != nil {
			r.replyText(ctx, msg, fmt.Sprintf("Error: %v", err))
			return
		}
		r.replyText(ctx, msg, "Working directory changed to: "+path)

	case "pwd":
		sess, err := r.store.GetOrCreate(msg.ChatID, r.defaultWorkDir)
		if err != nil {
			r.replyText(ctx, msg, fmt.Sprintf("Error: %v", err))
			return
		}
		r.replyText(ctx, msg, "Current directory: "+sess.WorkDir)

	case "clear":
		sess, err := r.store.GetOrCreate(msg.ChatID, r.defaultWorkDir)
		if err != nil {
			r.replyText(ctx, msg, fmt.Sprintf("Error: %v", err))
			return
		}
		sess.Messages = []session.Message{}
		if err := r.store.Save(sess); err != nil {
			r.replyText(ctx, msg, fmt.Sprintf("Error: %v", err))
			return
		}
		r.replyText(ctx, msg, "Conversation history cleared. Starting fresh!")

	case "status":
		sess, err := r.store.GetOrCreate(msg.ChatID, r.defaultWorkDir)
		if err != nil {
			r.replyText(ctx, msg, fmt.Sprintf("Error: %v", err))
			return
		}
		available := "not found"
		if r.exec.IsAvailable() {
			available = "available"
		}
		body := fmt.Sprintf("**Working Directory:** `%s`\n**Messages:** %d\n**Claude CLI:** %s\n**Session ID:** `%s`",
			sess.WorkDir, len(sess.Messages), available, sess.ID)
		r.replyCard(ctx, msg, "Session Status", body)

	default:
		r.replyText(ctx, msg, fmt.Sprintf("Unknown command: %s\nType /cc help for available commands.", args[0]))
	}
}

// handleExecute runs a claude invocation for a plain chat message.
func (r *Router) handleExecute(ctx context.Context, msg InboundMessage, prompt string) {
	sess, err := r.store.GetOrCreate(msg.ChatID, r.defaultWorkDir)
	if err != nil {
		log.Printf("relay: router: get or create session for %s: %v", msg.ChatID, err)
		r.replyText(ctx, msg, fmt.Sprintf("Error: %v", err))
		return
	}

	// Build the prompt from prior history, then record the new turn.
	fullPrompt := claude.BuildPrompt(sess, prompt)
	if err := r.store.AddMessage(sess, session.RoleUser, prompt); err != nil {
		log.Printf("relay: router: record user message for %s: %v", sess.ID, err)
	}

	fmt.Fprintf(r.out, "relay: router: executing in %s (timeout %v)\n", sess.WorkDir, r.timeout)

	result := r.exec.Execute(ctx, fullPrompt, claude.Options{
		WorkDir: sess.WorkDir,
		Timeout: r.timeout,
	})

	if !result.Success {
		errText := result.Error
		if errText == "" {
			errText = result.Output
		}
		if errText == "" {
			errText = "Unknown error"
		}
		fmt.Fprintf(r.out, "relay: router: execution failed after %v: %s\n",
			result.Duration, truncate(errText, 120))
		body := fmt.Sprintf("**Error**\n\n```\n%s\n```", truncateReply(errText, errorMaxLen))
		r.replyCard(ctx, msg, "Execution Failed", body)
		return
	}

	// Record the full output for history fidelity; the reply is capped.
	if err := r.store.AddMessage(sess, session.RoleAssistant, result.Output); err != nil {
		log.Printf("relay: router: record assistant message for %s: %v", sess.ID, err)
	}

	fmt.Fprintf(r.out, "relay: router: completed in %v (%d chars)\n",
		result.Duration, len(result.Output))

	title := fmt.Sprintf("Completed (%s)", formatDuration(result.Duration))
	r.replyCard(ctx, msg, title, truncateReply(result.Output, replyMaxLen))
}

// replyText sends a plain-text reply. Send failures are logged, never
// propagated; a delivery failure must not disturb committed state.
func (r *Router) replyText(ctx context.Context, msg InboundMessage, text string) {
	err := r.adapter.Send(ctx, OutboundMessage{
		ChatID:  msg.ChatID,
		ReplyTo: msg.MessageID,
		Text:    text,
	})
	if err != nil {
		log.Printf("relay: router: send reply to %s: %v", msg.ChatID, err)
	}
}

// replyCard sends a styled card reply. Send failures are logged only.
func (r *Router) replyCard(ctx context.Context, msg InboundMessage, title, markdown string) {
	err := r.adapter.Send(ctx, OutboundMessage{
		ChatID:  msg.ChatID,
		ReplyTo: msg.MessageID,
		Card:    &Card{Title: title, Markdown: markdown},
	})
	if err != nil {
		log.Printf("relay: router: send card to %s: %v", msg.ChatID, err)
	}
}
