package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/ccbridge/internal/session"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clear stored conversation sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored sessions, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(session.StoreOpts{})
			if err != nil {
				return err
			}
			sessions, err := store.List()
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "%s  chat=%s  messages=%d  workdir=%s  updated=%s\n",
					s.ID, s.ChatID, len(s.Messages), s.WorkDir,
					s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	})

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear [chat-id]",
		Short: "Delete one session by chat ID, or all with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(session.StoreOpts{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if all {
				if err := store.ClearAll(); err != nil {
					return fmt.Errorf("clear sessions: %w", err)
				}
				fmt.Fprintln(out, "All sessions cleared.")
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("specify a chat ID or --all")
			}
			// The argument may be a chat ID or a session ID.
			sess, err := store.GetByChatID(args[0])
			if err != nil {
				if sess, err = store.Get(args[0]); err != nil {
					return fmt.Errorf("no session found for %q", args[0])
				}
			}
			if err := store.Clear(sess.ID); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintf(out, "Session %s (chat %s) cleared.\n", sess.ID, sess.ChatID)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "delete every stored session")
	cmd.AddCommand(clearCmd)

	return cmd
}
