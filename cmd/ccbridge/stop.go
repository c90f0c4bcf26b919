package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/ccbridge/internal/service"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the ccbridge daemon",
		Long:  "Stops the background service and verifies the daemon process actually exited.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := service.NewManager(service.ManagerOpts{})
			if err != nil {
				return err
			}

			res := mgr.Stop()
			if !res.Success {
				return fmt.Errorf("stop service: %s", res.Message)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			if !res.ActuallyStopped {
				fmt.Fprintln(out, "Warning: a daemon process may still be running; check with 'ccbridge status'.")
			}
			return nil
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the background service registration",
		Long:  "Stops the daemon and deletes the launchd or systemd service file. Config and sessions are left in place.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := service.NewManager(service.ManagerOpts{})
			if err != nil {
				return err
			}

			res := mgr.Uninstall()
			if !res.Success {
				return fmt.Errorf("uninstall service: %s", res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}
