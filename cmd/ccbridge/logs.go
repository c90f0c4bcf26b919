package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const daemonLogPath = "/tmp/ccbridge.log"

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View daemon log output",
		Long:  "Shows the tail of the daemon log. With --follow, polls the file for new output until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, daemonLogPath, follow, lines)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "tail mode: poll for new output every 2s")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of recent lines to show")
	return cmd
}

func runLogs(cmd *cobra.Command, path string, follow bool, lines int) error {
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(out, "No log file at %s; is the daemon running?\n", path)
			if !follow {
				return nil
			}
			data = nil
		} else {
			return fmt.Errorf("read log: %w", err)
		}
	}

	fmt.Fprint(out, tailLines(string(data), lines))

	if !follow {
		return nil
	}

	// Follow mode: poll the file for growth.
	offset := int64(len(data))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := dumpFrom(out, path, offset)
			if err != nil {
				continue
			}
			offset = n
		}
	}
}

// tailLines returns the last n lines of text, newline-terminated.
func tailLines(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}
	all := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return strings.Join(all, "\n") + "\n"
}

// dumpFrom writes everything past offset to out and returns the new offset.
// A shrunken file (rotation) restarts from the beginning.
func dumpFrom(out io.Writer, path string, offset int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	n, err := io.Copy(out, f)
	return offset + n, err
}
