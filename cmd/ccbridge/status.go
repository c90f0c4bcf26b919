package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/ccbridge/internal/claude"
	"github.com/zulandar/ccbridge/internal/config"
	"github.com/zulandar/ccbridge/internal/service"
	"github.com/zulandar/ccbridge/internal/session"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, config, and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default ~/.ccbridge/config.yaml)")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	path, err := resolveConfigPath(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "ccbridge status")
	fmt.Fprintln(out)

	// Config.
	binary := ""
	if cfg, err := config.Load(path); err != nil {
		fmt.Fprintf(out, "Config:    not found (%s); run 'ccbridge init'\n", path)
	} else {
		fmt.Fprintf(out, "Config:    %s (platform: %s)\n", path, cfg.Platform)
		binary = cfg.Claude.Binary
	}

	// Claude CLI.
	if claude.NewRunner(binary).IsAvailable() {
		fmt.Fprintln(out, "Claude:    available")
	} else {
		fmt.Fprintln(out, "Claude:    NOT FOUND on PATH")
	}

	// Service.
	mgr, err := service.NewManager(service.ManagerOpts{})
	if err != nil {
		return err
	}
	st := mgr.StatusReport()
	switch {
	case st.Platform == "unsupported":
		fmt.Fprintln(out, "Service:   unsupported platform")
	case st.Running:
		fmt.Fprintf(out, "Service:   RUNNING (%s)\n", st.Platform)
	case st.Installed:
		fmt.Fprintf(out, "Service:   installed but stopped (%s)\n", st.Platform)
	default:
		fmt.Fprintf(out, "Service:   not installed (%s)\n", st.Platform)
	}

	// Sessions.
	store, err := session.NewStore(session.StoreOpts{})
	if err != nil {
		return err
	}
	sessions, err := store.List()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	fmt.Fprintf(out, "Sessions:  %d\n", len(sessions))

	return nil
}
