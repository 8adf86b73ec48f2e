// Package tmux probes the terminal multiplexer hosting the lead and
// teammate panes. The coordination core never drives tmux; it only anchors
// window/pane ids at team creation and verifies declared panes still exist
// during health checks.
package tmux

import (
	"os"
	"os/exec"
	"strings"
)

// Prober answers questions about the live multiplexer. Doctor and the team
// registry take this interface so tests can run without tmux installed.
type Prober interface {
	// TargetExists reports whether a window ("@n") or pane ("%n") id is
	// present in the live server. An empty target never exists.
	TargetExists(target string) bool

	// CurrentAnchor returns the window and pane id of the invoking
	// terminal, or empty strings when not inside tmux.
	CurrentAnchor() (windowID, paneID string)
}

// Real implements Prober by running the tmux binary.
type Real struct{}

// InsideTmux reports whether the process runs inside a tmux client.
func InsideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// TargetExists implements Prober.
func (Real) TargetExists(target string) bool {
	if target == "" {
		return false
	}
	var cmd *exec.Cmd
	if strings.HasPrefix(target, "@") {
		cmd = exec.Command("tmux", "list-windows", "-a", "-F", "#{window_id}")
	} else {
		cmd = exec.Command("tmux", "list-panes", "-a", "-F", "#{pane_id}")
	}
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == target {
			return true
		}
	}
	return false
}

// CurrentAnchor implements Prober. When $TMUX_PANE names a pane that still
// exists, its window is preferred over the active pane so the anchor
// survives focus changes between detection and persistence.
func (Real) CurrentAnchor() (string, string) {
	if !InsideTmux() {
		return "", ""
	}

	if pane := strings.TrimSpace(os.Getenv("TMUX_PANE")); pane != "" {
		if display(pane, "#{pane_id}") == pane {
			if window := display(pane, "#{window_id}"); window != "" {
				return window, pane
			}
		}
	}

	window := display("", "#{window_id}")
	pane := display("", "#{pane_id}")
	return window, pane
}

// display runs tmux display-message -p for the given format, optionally
// targeted at a pane.
func display(target, format string) string {
	args := []string{"display-message", "-p"}
	if target != "" {
		args = append(args, "-t", target)
	}
	args = append(args, format)
	out, err := exec.Command("tmux", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Ensure Real implements Prober.
var _ Prober = Real{}
