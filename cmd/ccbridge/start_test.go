package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/zulandar/ccbridge/internal/config"
)

func TestCreateAdapter_Slack(t *testing.T) {
	cfg := &config.Config{
		Platform: "slack",
		Slack:    config.SlackConfig{AppToken: "xapp-1", BotToken: "xoxb-2"},
	}
	adapter, err := createAdapter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
}

func TestCreateAdapter_Discord(t *testing.T) {
	cfg := &config.Config{
		Platform: "discord",
		Discord:  config.DiscordConfig{BotToken: "tok"},
	}
	adapter, err := createAdapter(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
}

func TestCreateAdapter_Unsupported(t *testing.T) {
	if _, err := createAdapter(&config.Config{Platform: "irc"}); err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}

func TestStartForeground_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cmd.SetArgs([]string{"start", "--foreground", "-c", missing})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config")
	}
}
