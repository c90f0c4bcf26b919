package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/ccbridge/internal/claude"
	"github.com/zulandar/ccbridge/internal/config"
	"github.com/zulandar/ccbridge/internal/relay"
	discordadapter "github.com/zulandar/ccbridge/internal/relay/discord"
	slackadapter "github.com/zulandar/ccbridge/internal/relay/slack"
	"github.com/zulandar/ccbridge/internal/service"
	"github.com/zulandar/ccbridge/internal/session"
)

func newStartCmd() *cobra.Command {
	var (
		configPath string
		foreground bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ccbridge daemon",
		Long:  "Starts the bridge as a background OS service (launchd or systemd). With --foreground, runs the daemon in the current process instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runForeground(cmd, configPath)
			}
			return runServiceStart(cmd)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default ~/.ccbridge/config.yaml)")
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground instead of as a service")
	return cmd
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func runForeground(cmd *cobra.Command, configPath string) error {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w (run 'ccbridge init' to create one)", err)
	}

	store, err := session.NewStore(session.StoreOpts{})
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	daemon, err := relay.NewDaemon(relay.DaemonOpts{
		Adapter:        adapter,
		Store:          store,
		Executor:       claude.NewRunner(cfg.Claude.Binary),
		DefaultWorkDir: cfg.Claude.DefaultWorkDir,
		Out:            cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "ccbridge: starting on %s\n", cfg.Platform)
	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (relay.Adapter, error) {
	switch cfg.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Slack.AppToken,
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.Channel,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.Channel,
		})
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}

func runServiceStart(cmd *cobra.Command) error {
	mgr, err := service.NewManager(service.ManagerOpts{})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	res := mgr.Start()
	if !res.Success {
		return fmt.Errorf("start service: %s", res.Message)
	}
	fmt.Fprintln(out, res.Message)
	fmt.Fprintf(out, "Logs: %s\n", "/tmp/ccbridge.log")
	return nil
}
