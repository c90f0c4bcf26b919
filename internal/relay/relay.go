package relay

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zulandar/ccbridge/internal/claude"
	"github.com/zulandar/ccbridge/internal/session"
)

// Daemon owns the long-running bridge process: it connects the platform
// adapter, wires a Router over the session store and executor, and pumps
// inbound messages until the context is cancelled.
type Daemon struct {
	adapter        Adapter
	store          *session.Store
	exec           Executor
	defaultWorkDir string
	timeout        time.Duration
	out            io.Writer
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Adapter        Adapter
	Store          *session.Store
	Executor       Executor
	DefaultWorkDir string
	ExecuteTimeout time.Duration // defaults to defaultExecuteTimeout
	Out            io.Writer     // defaults to os.Stdout
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("relay: adapter is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("relay: session store is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("relay: executor is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		adapter:        opts.Adapter,
		store:          opts.Store,
		exec:           opts.Executor,
		defaultWorkDir: opts.DefaultWorkDir,
		timeout:        opts.ExecuteTimeout,
		out:            out,
	}, nil
}

// Run connects the adapter and processes inbound messages until ctx is
// cancelled or the inbound channel closes. Each message is handled in
// its own goroutine; the Router serializes messages per chat thread.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.exec.IsAvailable() {
		fmt.Fprintf(d.out, "relay: warning: claude CLI not found, executions will fail\n")
	}

	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("relay: connect adapter: %w", err)
	}
	defer d.adapter.Close()

	var botUserID string
	if ider, ok := d.adapter.(BotUserIDer); ok {
		botUserID = ider.BotUserID()
	}

	router, err := NewRouter(RouterOpts{
		Store:          d.store,
		Executor:       d.exec,
		Adapter:        d.adapter,
		BotUserID:      botUserID,
		DefaultWorkDir: d.defaultWorkDir,
		ExecuteTimeout: d.timeout,
		Out:            d.out,
	})
	if err != nil {
		return fmt.Errorf("relay: create router: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("relay: listen: %w", err)
	}

	fmt.Fprintf(d.out, "relay: connected, waiting for messages\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "relay: shutting down\n")
			return nil
		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "relay: inbound channel closed\n")
				return nil
			}
			go router.Handle(ctx, msg)
		}
	}
}

var _ Executor = (*claude.Runner)(nil)
