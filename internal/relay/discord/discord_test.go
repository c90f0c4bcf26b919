package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/ccbridge/internal/relay"
)

// --- Mock session ---

type mockSession struct {
	mu       sync.Mutex
	opened   bool
	closed   bool
	openErr  error
	sent     []sentMessage
	sendErr  error
	handlers []interface{}
}

type sentMessage struct {
	channelID string
	data      *discordgo.MessageSend
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{channelID: channelID, data: data})
	return &discordgo.Message{ID: "sent-1"}, nil
}

func (m *mockSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return func() {}
}

func (m *mockSession) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockSession) lastSent() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func (m *mockSession) allSent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// --- Helpers ---

func newTestAdapter(t *testing.T) (*Adapter, *mockSession) {
	t.Helper()
	sess := &mockSession{}
	a, err := New(AdapterOpts{Session: sess})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	a.SetBotUserID("BOT_1")
	return a, sess
}

func messageCreate(id, channel, author, text string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        id,
			ChannelID: channel,
			Content:   text,
			Author:    &discordgo.User{ID: author, Username: "user-" + author},
		},
	}
}

// --- New / Connect tests ---

func TestNew_RequiresBotToken(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestConnect_OpensGateway(t *testing.T) {
	_, sess := newTestAdapter(t)
	if !sess.opened {
		t.Error("connect should open the gateway session")
	}
}

func TestConnect_OpenError(t *testing.T) {
	sess := &mockSession{openErr: fmt.Errorf("bad token")}
	a, _ := New(AdapterOpts{Session: sess})
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error for closed adapter")
	}
}

// --- handleMessage tests ---

func TestHandleMessage_DeliversInbound(t *testing.T) {
	a, _ := newTestAdapter(t)
	ch, err := a.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go a.handleMessage(messageCreate("111", "CH1", "U1", "hello"))

	select {
	case msg := <-ch:
		if msg.Platform != "discord" {
			t.Errorf("platform = %q", msg.Platform)
		}
		if msg.MessageID != "111" || msg.ChatID != "CH1" || msg.SenderID != "U1" {
			t.Errorf("identity fields = %+v", msg)
		}
		if msg.Text != "hello" || msg.MsgType != relay.MsgTypeText {
			t.Errorf("content fields = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

func TestHandleMessage_FiltersSelf(t *testing.T) {
	a, _ := newTestAdapter(t)
	ch, _ := a.Listen(context.Background())

	go func() {
		a.handleMessage(messageCreate("111", "CH1", "BOT_1", "own message"))
		a.handleMessage(messageCreate("112", "CH1", "U1", "real message"))
	}()

	select {
	case msg := <-ch:
		if msg.Text != "real message" {
			t.Errorf("expected real message, got %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestHandleMessage_FiltersBots(t *testing.T) {
	a, _ := newTestAdapter(t)
	ch, _ := a.Listen(context.Background())

	botMsg := messageCreate("111", "CH1", "U_OTHER_BOT", "beep")
	botMsg.Author.Bot = true

	go func() {
		a.handleMessage(botMsg)
		a.handleMessage(messageCreate("112", "CH1", "U1", "human message"))
	}()

	select {
	case msg := <-ch:
		if msg.Text != "human message" {
			t.Errorf("expected human message, got %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestHandleMessage_FiltersOtherChannels(t *testing.T) {
	sess := &mockSession{}
	a, err := New(AdapterOpts{Session: sess, ChannelID: "CH_HOME"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ch, _ := a.Listen(context.Background())

	go func() {
		a.handleMessage(messageCreate("111", "CH_OTHER", "U1", "elsewhere"))
		a.handleMessage(messageCreate("112", "CH_HOME", "U1", "at home"))
	}()

	select {
	case msg := <-ch:
		if msg.Text != "at home" {
			t.Errorf("expected home-channel message, got %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestHandleMessage_AttachmentOnlyIsNonText(t *testing.T) {
	a, _ := newTestAdapter(t)
	ch, _ := a.Listen(context.Background())

	attach := messageCreate("111", "CH1", "U1", "")
	attach.Attachments = []*discordgo.MessageAttachment{{ID: "file-1"}}

	go a.handleMessage(attach)

	select {
	case msg := <-ch:
		if msg.MsgType == relay.MsgTypeText {
			t.Error("attachment-only message should not be typed as text")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

// --- Send tests ---

func TestSend_Text(t *testing.T) {
	a, sess := newTestAdapter(t)

	err := a.Send(context.Background(), relay.OutboundMessage{ChatID: "CH1", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := sess.lastSent()
	if last.channelID != "CH1" || last.data.Content != "hi" {
		t.Errorf("sent = %+v", last)
	}
}

func TestSend_CardBecomesEmbed(t *testing.T) {
	a, sess := newTestAdapter(t)

	err := a.Send(context.Background(), relay.OutboundMessage{
		ChatID: "CH1",
		Card:   &relay.Card{Title: "Session Status", Markdown: "details"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := sess.lastSent()
	if len(last.data.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(last.data.Embeds))
	}
	if last.data.Embeds[0].Title != "Session Status" || last.data.Embeds[0].Description != "details" {
		t.Errorf("embed = %+v", last.data.Embeds[0])
	}
}

func TestSend_ReplyToBecomesReference(t *testing.T) {
	a, sess := newTestAdapter(t)

	err := a.Send(context.Background(), relay.OutboundMessage{
		ChatID:  "CH1",
		ReplyTo: "msg-9",
		Text:    "threaded",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref := sess.lastSent().data.Reference
	if ref == nil || ref.MessageID != "msg-9" || ref.ChannelID != "CH1" {
		t.Errorf("reference = %+v", ref)
	}
}

func TestSend_LongTextIsChunked(t *testing.T) {
	a, sess := newTestAdapter(t)

	long := strings.Repeat("a", maxContentLen+500)
	if err := a.Send(context.Background(), relay.OutboundMessage{ChatID: "CH1", Text: long}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := sess.allSent()
	if len(sent) != 2 {
		t.Fatalf("sends = %d, want 2", len(sent))
	}
	total := 0
	for _, s := range sent {
		if len(s.data.Content) > maxContentLen {
			t.Errorf("chunk length %d exceeds content limit", len(s.data.Content))
		}
		total += len(s.data.Content)
	}
	if total != len(long) {
		t.Errorf("reassembled length = %d, want %d", total, len(long))
	}
}

func TestSend_LongCardIsChunkedIntoEmbeds(t *testing.T) {
	a, sess := newTestAdapter(t)

	long := strings.Repeat("x", maxEmbedLen+100)
	err := a.Send(context.Background(), relay.OutboundMessage{
		ChatID:  "CH1",
		ReplyTo: "msg-1",
		Card:    &relay.Card{Title: "Completed (2.0s)", Markdown: long},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := sess.allSent()
	if len(sent) != 2 {
		t.Fatalf("sends = %d, want 2", len(sent))
	}
	first, second := sent[0].data, sent[1].data
	if first.Embeds[0].Title != "Completed (2.0s)" {
		t.Errorf("first embed title = %q", first.Embeds[0].Title)
	}
	if first.Reference == nil || first.Reference.MessageID != "msg-1" {
		t.Errorf("first send reference = %+v", first.Reference)
	}
	if second.Embeds[0].Title != "" {
		t.Error("continuation embed should not repeat the title")
	}
	if second.Reference != nil {
		t.Error("continuation send should not carry the reply reference")
	}
	for _, s := range sent {
		if len(s.data.Embeds[0].Description) > maxEmbedLen {
			t.Errorf("embed length %d exceeds limit", len(s.data.Embeds[0].Description))
		}
	}
}

func TestChunkMessage_BreaksAtNewline(t *testing.T) {
	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	chunks := chunkMessage(text, 10)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 8) || chunks[1] != strings.Repeat("b", 8) {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestSend_DefaultChannel(t *testing.T) {
	sess := &mockSession{}
	a, _ := New(AdapterOpts{Session: sess, ChannelID: "CH_DEFAULT"})
	a.Connect(context.Background())

	if err := a.Send(context.Background(), relay.OutboundMessage{Text: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := sess.lastSent(); last.channelID != "CH_DEFAULT" {
		t.Errorf("channel = %q, want CH_DEFAULT", last.channelID)
	}
}

func TestSend_NoChannel(t *testing.T) {
	sess := &mockSession{}
	a, _ := New(AdapterOpts{Session: sess})
	a.Connect(context.Background())

	if err := a.Send(context.Background(), relay.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error for no channel")
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Session: &mockSession{}})
	if err := a.Send(context.Background(), relay.OutboundMessage{ChatID: "CH1", Text: "hi"}); err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	a, sess := newTestAdapter(t)
	a.baseBackoff = time.Millisecond
	a.maxBackoff = 10 * time.Millisecond

	rl := &rateLimitSession{inner: sess, failCount: 2}
	a.sess = rl

	err := a.Send(context.Background(), relay.OutboundMessage{ChatID: "CH1", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rl.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", rl.calls)
	}
}

func TestSend_NonRateLimitErrorNotRetried(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.sendErr = fmt.Errorf("missing permissions")

	if err := a.Send(context.Background(), relay.OutboundMessage{ChatID: "CH1", Text: "hi"}); err == nil {
		t.Fatal("expected send error")
	}
}

// rateLimitSession fails ChannelMessageSendComplex with HTTP 429 for the
// first N calls.
type rateLimitSession struct {
	inner     *mockSession
	mu        sync.Mutex
	calls     int
	failCount int
}

func (r *rateLimitSession) Open() error  { return r.inner.Open() }
func (r *rateLimitSession) Close() error { return r.inner.Close() }

func (r *rateLimitSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	r.calls++
	c := r.calls
	r.mu.Unlock()
	if c <= r.failCount {
		return nil, &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusTooManyRequests},
		}
	}
	return r.inner.ChannelMessageSendComplex(channelID, data, options...)
}

func (r *rateLimitSession) AddHandler(handler interface{}) func() { return r.inner.AddHandler(handler) }

// --- Close tests ---

func TestClose_ClosesSession(t *testing.T) {
	a, sess := newTestAdapter(t)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sess.closed {
		t.Error("close should close the gateway session")
	}
}

func TestClose_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.Close()
	if err := a.Close(); err != nil {
		t.Fatalf("second close should not error: %v", err)
	}
}

// --- Verify Adapter interface compliance ---

var _ relay.Adapter = (*Adapter)(nil)
var _ relay.BotUserIDer = (*Adapter)(nil)
