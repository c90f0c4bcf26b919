// Package service manages the ccbridge daemon as an OS background service:
// a launchd LaunchAgent on macOS or a systemd user unit on Linux.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// launchdLabel identifies the LaunchAgent on macOS.
	launchdLabel = "com.ccbridge"
	// unitName identifies the systemd user unit on Linux.
	unitName = "ccbridge"
	// logPath receives the daemon's stdout.
	logPath = "/tmp/ccbridge.log"
	// errLogPath receives the daemon's stderr.
	errLogPath = "/tmp/ccbridge.error.log"
	// processPattern matches the daemon command line for pkill/pgrep.
	processPattern = "ccbridge start --foreground"
	// settleDelay gives launchd time to act between lifecycle commands.
	settleDelay = 500 * time.Millisecond
)

// CommandRunner abstracts external command execution for testability.
type CommandRunner interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) (string, error)
}

// execRunner is the production CommandRunner backed by os/exec.
type execRunner struct{}

func (execRunner) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (execRunner) Output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	return string(out), err
}

// Status describes the service's installed and running state.
type Status struct {
	Installed bool
	Running   bool
	Platform  string // "macos", "linux", or "unsupported"
}

// Result reports the outcome of an install, start, or uninstall.
type Result struct {
	Success bool
	Message string
}

// StopResult reports the outcome of a stop request. Success means the stop
// commands ran; ActuallyStopped means the daemon process is verifiably gone.
// launchd can respawn a KeepAlive service faster than bootout completes, so
// the two can differ.
type StopResult struct {
	Success         bool
	ActuallyStopped bool
	Message         string
}

// Manager installs and controls the daemon's OS service registration.
type Manager struct {
	goos     string
	home     string
	execPath string
	uid      int
	runner   CommandRunner
	sleep    func(time.Duration)
}

// ManagerOpts holds optional overrides for creating a Manager; zero values
// take the production defaults.
type ManagerOpts struct {
	GOOS     string
	Home     string
	ExecPath string
	UID      int
	Runner   CommandRunner
	Sleep    func(time.Duration)
}

// NewManager creates a Manager for the current OS, user, and executable.
func NewManager(opts ManagerOpts) (*Manager, error) {
	m := &Manager{
		goos:     opts.GOOS,
		home:     opts.Home,
		execPath: opts.ExecPath,
		uid:      opts.UID,
		runner:   opts.Runner,
		sleep:    opts.Sleep,
	}
	if m.goos == "" {
		m.goos = runtime.GOOS
	}
	if m.home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("service: resolve home dir: %w", err)
		}
		m.home = home
	}
	if m.execPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("service: resolve executable path: %w", err)
		}
		m.execPath = exe
	}
	if m.uid == 0 {
		m.uid = os.Getuid()
	}
	if m.runner == nil {
		m.runner = execRunner{}
	}
	if m.sleep == nil {
		m.sleep = time.Sleep
	}
	return m, nil
}

// Platform returns "macos", "linux", or "unsupported".
func (m *Manager) Platform() string {
	switch m.goos {
	case "darwin":
		return "macos"
	case "linux":
		return "linux"
	default:
		return "unsupported"
	}
}

// plistPath is the LaunchAgent descriptor location on macOS.
func (m *Manager) plistPath() string {
	return filepath.Join(m.home, "Library", "LaunchAgents", launchdLabel+".plist")
}

// unitPath is the systemd user unit location on Linux.
func (m *Manager) unitPath() string {
	return filepath.Join(m.home, ".config", "systemd", "user", unitName+".service")
}

// descriptorPath returns the service descriptor path for the platform.
func (m *Manager) descriptorPath() string {
	switch m.Platform() {
	case "macos":
		return m.plistPath()
	case "linux":
		return m.unitPath()
	default:
		return ""
	}
}

// IsInstalled reports whether the service descriptor file exists.
func (m *Manager) IsInstalled() bool {
	path := m.descriptorPath()
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Install writes the platform's service descriptor file. It does not start
// the service.
func (m *Manager) Install() Result {
	path := m.descriptorPath()
	if path == "" {
		return Result{Message: fmt.Sprintf("unsupported platform: %s", m.goos)}
	}

	var content string
	switch m.Platform() {
	case "macos":
		content = m.renderPlist()
	case "linux":
		content = m.renderUnit()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{Message: fmt.Sprintf("create service directory: %v", err)}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Result{Message: fmt.Sprintf("write service file: %v", err)}
	}
	return Result{Success: true, Message: fmt.Sprintf("Service installed at %s", path)}
}

// renderPlist produces the launchd LaunchAgent descriptor.
func (m *Manager) renderPlist() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
        <string>start</string>
        <string>--foreground</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>%s</string>
    <key>StandardErrorPath</key>
    <string>%s</string>
    <key>EnvironmentVariables</key>
    <dict>
        <key>PATH</key>
        <string>/usr/local/bin:/opt/homebrew/bin:/usr/bin:/bin</string>
    </dict>
</dict>
</plist>
`, launchdLabel, m.execPath, logPath, errLogPath)
}

// renderUnit produces the systemd user unit descriptor.
func (m *Manager) renderUnit() string {
	return fmt.Sprintf(`[Unit]
Description=ccbridge chat-to-claude relay daemon
After=network-online.target

[Service]
ExecStart=%s start --foreground
Restart=always
RestartSec=10
StandardOutput=append:%s
StandardError=append:%s
Environment=PATH=/usr/local/bin:/usr/bin:/bin:%%h/.local/bin

[Install]
WantedBy=default.target
`, m.execPath, logPath, errLogPath)
}

// Start installs the service if needed and starts it. On macOS the agent is
// booted out first so a stale registration never blocks the bootstrap.
func (m *Manager) Start() Result {
	switch m.Platform() {
	case "macos":
		if !m.IsInstalled() {
			if res := m.Install(); !res.Success {
				return res
			}
		}
		target := fmt.Sprintf("gui/%d/%s", m.uid, launchdLabel)
		// Clear any previous registration; errors just mean it wasn't loaded.
		_ = m.runner.Run("launchctl", "bootout", target)
		_ = m.runner.Run("launchctl", "remove", launchdLabel)
		m.sleep(settleDelay)
		domain := fmt.Sprintf("gui/%d", m.uid)
		if err := m.runner.Run("launchctl", "bootstrap", domain, m.plistPath()); err != nil {
			return Result{Message: fmt.Sprintf("launchctl bootstrap: %v", err)}
		}
		return Result{Success: true, Message: "Service started"}

	case "linux":
		if !m.IsInstalled() {
			if res := m.Install(); !res.Success {
				return res
			}
		}
		if err := m.runner.Run("systemctl", "--user", "daemon-reload"); err != nil {
			return Result{Message: fmt.Sprintf("systemctl daemon-reload: %v", err)}
		}
		if err := m.runner.Run("systemctl", "--user", "start", unitName); err != nil {
			return Result{Message: fmt.Sprintf("systemctl start: %v", err)}
		}
		if err := m.runner.Run("systemctl", "--user", "enable", unitName); err != nil {
			return Result{Message: fmt.Sprintf("systemctl enable: %v", err)}
		}
		return Result{Success: true, Message: "Service started"}

	default:
		return Result{Message: fmt.Sprintf("unsupported platform: %s", m.goos)}
	}
}

// Stop stops the service and verifies the daemon process is gone. On macOS
// the process is killed before the agent is booted out, otherwise KeepAlive
// respawns it mid-teardown; a post-check re-kills any survivor.
func (m *Manager) Stop() StopResult {
	switch m.Platform() {
	case "macos":
		target := fmt.Sprintf("gui/%d/%s", m.uid, launchdLabel)
		_ = m.runner.Run("pkill", "-9", "-f", processPattern)
		m.sleep(settleDelay)
		_ = m.runner.Run("launchctl", "bootout", target)
		_ = m.runner.Run("launchctl", "remove", launchdLabel)
		m.sleep(settleDelay)

		if m.processAlive() {
			_ = m.runner.Run("pkill", "-9", "-f", processPattern)
			m.sleep(settleDelay)
			if m.processAlive() {
				return StopResult{
					Success: true,
					Message: "Stop commands issued but a daemon process is still running",
				}
			}
		}
		return StopResult{Success: true, ActuallyStopped: true, Message: "Service stopped"}

	case "linux":
		// A stop failure (unit never loaded, manager restarting) must not
		// block the operator; the unit state below is the source of truth.
		_ = m.runner.Run("systemctl", "--user", "stop", unitName)
		if m.unitActive() {
			return StopResult{
				Success: true,
				Message: "Stop issued but the unit is still active",
			}
		}
		return StopResult{Success: true, ActuallyStopped: true, Message: "Service stopped"}

	default:
		return StopResult{Message: fmt.Sprintf("unsupported platform: %s", m.goos)}
	}
}

// Uninstall stops the service best-effort and removes its descriptor.
func (m *Manager) Uninstall() Result {
	path := m.descriptorPath()
	if path == "" {
		return Result{Message: fmt.Sprintf("unsupported platform: %s", m.goos)}
	}

	m.Stop()
	if m.Platform() == "linux" {
		_ = m.runner.Run("systemctl", "--user", "disable", unitName)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return Result{Message: fmt.Sprintf("remove service file: %v", err)}
	}
	return Result{Success: true, Message: "Service uninstalled"}
}

// StatusReport returns the installed and running state of the service.
func (m *Manager) StatusReport() Status {
	st := Status{Platform: m.Platform()}
	if st.Platform == "unsupported" {
		return st
	}
	st.Installed = m.IsInstalled()

	switch st.Platform {
	case "macos":
		target := fmt.Sprintf("gui/%d/%s", m.uid, launchdLabel)
		out, err := m.runner.Output("launchctl", "print", target)
		st.Running = err == nil && strings.Contains(out, "state = running")
	case "linux":
		st.Running = m.unitActive()
	}
	return st
}

// processAlive reports whether a daemon process matches processPattern.
func (m *Manager) processAlive() bool {
	return m.runner.Run("pgrep", "-f", processPattern) == nil
}

// unitActive reports whether the systemd unit is active.
func (m *Manager) unitActive() bool {
	out, _ := m.runner.Output("systemctl", "--user", "is-active", unitName)
	return strings.TrimSpace(out) == "active"
}
