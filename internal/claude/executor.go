// Package claude runs the claude CLI as a one-shot subprocess and builds
// conversation-aware prompts for it.
package claude

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	// defaultBinary is the claude CLI executable name.
	defaultBinary = "claude"
	// versionCheckTimeout bounds the availability probe.
	versionCheckTimeout = 10 * time.Second
	// waitDelay is how long a SIGTERM'd process gets before SIGKILL.
	waitDelay = 10 * time.Second
)

// Result is the classified outcome of one subprocess invocation. Exactly one
// of timeout, normal exit, or spawn error produces any given Result.
type Result struct {
	Success  bool
	Output   string        // trimmed stdout (may be partial on failure)
	Error    string        // diagnostic text; empty on success
	Duration time.Duration // spawn to completion (or timeout firing)
}

// Options configures a single invocation.
type Options struct {
	WorkDir string        // subprocess working directory
	Timeout time.Duration // wall-clock budget; <= 0 means no timeout
}

// Runner invokes the claude CLI.
type Runner struct {
	Binary string // path to the claude binary; defaults to "claude"
}

// NewRunner creates a Runner for the given binary ("" uses the default).
func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = defaultBinary
	}
	return &Runner{Binary: binary}
}

// cleanEnv returns the current environment with CLAUDECODE stripped (so a
// nested invocation is possible) and non-interactive flags forced.
func cleanEnv() []string {
	env := make([]string, 0, len(os.Environ())+2)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "CLAUDECODE=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "CI=true", "TERM=dumb")
}

// Execute runs `claude --print <prompt>` in opts.WorkDir and classifies the
// outcome. The subprocess runs with stdin closed and a non-interactive
// environment. On timeout the process group receives SIGTERM (escalating to
// SIGKILL after waitDelay) and the partial output is discarded.
func (r *Runner) Execute(ctx context.Context, prompt string, opts Options) Result {
	start := time.Now()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Binary, "--print", prompt)
	cmd.Dir = opts.WorkDir
	cmd.Env = cleanEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Use a process group so SIGTERM reaches the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return Result{
			Success:  false,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	err := cmd.Wait()
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return Result{
			Success:  false,
			Error:    fmt.Sprintf("execution timed out after %v", opts.Timeout),
			Duration: duration,
		}
	}

	if err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			if exitErr, ok := err.(*exec.ExitError); ok {
				errText = fmt.Sprintf("process exited with code %d", exitErr.ExitCode())
			} else {
				errText = err.Error()
			}
		}
		return Result{
			Success:  false,
			Output:   strings.TrimSpace(stdout.String()),
			Error:    errText,
			Duration: duration,
		}
	}

	return Result{
		Success:  true,
		Output:   strings.TrimSpace(stdout.String()),
		Duration: duration,
	}
}

// IsAvailable reports whether the claude CLI can be invoked, based purely on
// the exit code of a version query. All other errors read as unavailable.
func (r *Runner) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), versionCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Binary, "--version")
	cmd.Env = cleanEnv()
	return cmd.Run() == nil
}
