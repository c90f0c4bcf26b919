// Package config provides YAML-based configuration loading for ccbridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ccbridge configuration, loaded from
// ~/.ccbridge/config.yaml.
type Config struct {
	Platform string        `yaml:"platform"` // "slack" or "discord"
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Claude   ClaudeConfig  `yaml:"claude"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"` // xapp-... app-level token
	BotToken string `yaml:"bot_token"` // xoxb-... bot token
	Channel  string `yaml:"channel"`   // default channel ID
}

// DiscordConfig holds Discord Gateway credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"` // default channel ID
}

// ClaudeConfig holds settings for the claude CLI subprocess.
type ClaudeConfig struct {
	Binary         string `yaml:"binary"`           // claude executable; defaults to "claude"
	DefaultWorkDir string `yaml:"default_work_dir"` // work dir for new sessions
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ccbridge", "config.yaml"), nil
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config as YAML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Claude.Binary == "" {
		c.Claude.Binary = "claude"
	}
	if c.Claude.DefaultWorkDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Claude.DefaultWorkDir = home
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "slack":
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required")
		}
	case "discord":
		if c.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token is required")
		}
	case "":
		errs = append(errs, "platform is required")
	default:
		errs = append(errs, fmt.Sprintf("unsupported platform %q", c.Platform))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Set assigns a dotted config key (e.g. "claude.default_work_dir") to value.
// Used by the `ccbridge config set` command.
func (c *Config) Set(key, value string) error {
	switch key {
	case "platform":
		c.Platform = value
	case "slack.app_token":
		c.Slack.AppToken = value
	case "slack.bot_token":
		c.Slack.BotToken = value
	case "slack.channel":
		c.Slack.Channel = value
	case "discord.bot_token":
		c.Discord.BotToken = value
	case "discord.channel":
		c.Discord.Channel = value
	case "claude.binary":
		c.Claude.Binary = value
	case "claude.default_work_dir":
		c.Claude.DefaultWorkDir = value
	default:
		return fmt.Errorf("config: unknown key %q", key)
	}
	return nil
}

// Redacted returns a copy with token values masked for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Slack.AppToken = redact(out.Slack.AppToken)
	out.Slack.BotToken = redact(out.Slack.BotToken)
	out.Discord.BotToken = redact(out.Discord.BotToken)
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
