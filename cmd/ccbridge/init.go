package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/ccbridge/internal/claude"
	"github.com/zulandar/ccbridge/internal/config"
	"golang.org/x/term"
)

func newInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create the ccbridge config",
		Long:  "Walks through platform selection and credentials, then writes the config file. Tokens are read without echo when stdin is a terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default ~/.ccbridge/config.yaml)")
	return cmd
}

func runInit(cmd *cobra.Command, configPath string) error {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	fmt.Fprintln(out, "ccbridge setup")
	fmt.Fprintln(out)

	if _, err := os.Stat(path); err == nil {
		answer, err := promptLine(in, out, fmt.Sprintf("Config already exists at %s. Overwrite? [y/N]: ", path))
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := &config.Config{}

	platform, err := promptLine(in, out, "Platform (slack/discord): ")
	if err != nil {
		return err
	}
	cfg.Platform = strings.ToLower(platform)

	switch cfg.Platform {
	case "slack":
		if cfg.Slack.AppToken, err = promptSecret(in, out, "Slack app token (xapp-...): "); err != nil {
			return err
		}
		if cfg.Slack.BotToken, err = promptSecret(in, out, "Slack bot token (xoxb-...): "); err != nil {
			return err
		}
		if cfg.Slack.Channel, err = promptLine(in, out, "Channel ID to listen on (empty for all): "); err != nil {
			return err
		}
	case "discord":
		if cfg.Discord.BotToken, err = promptSecret(in, out, "Discord bot token: "); err != nil {
			return err
		}
		if cfg.Discord.Channel, err = promptLine(in, out, "Channel ID to listen on (empty for all): "); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported platform %q (choose slack or discord)", cfg.Platform)
	}

	workDir, err := promptLine(in, out, "Default working directory (empty for home): ")
	if err != nil {
		return err
	}
	cfg.Claude.DefaultWorkDir = workDir

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(out, "\nConfig written to %s\n", path)

	if !claude.NewRunner("").IsAvailable() {
		fmt.Fprintln(out, "Warning: claude CLI not found on PATH; install it before starting the daemon.")
	}

	fmt.Fprintln(out, "Run 'ccbridge start' to launch the daemon.")
	return nil
}

// promptLine prints a prompt and reads one trimmed line.
func promptLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a token without echo when stdin is a terminal, and
// falls back to a plain line read otherwise (pipes, tests).
func promptSecret(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(in, out, prompt)
	}
	fmt.Fprint(out, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
