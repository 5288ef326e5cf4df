//go:build linux

package probe

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// linuxProbe shells out to X11 utilities. xdotool provides the active window,
// xprintidle the idle time. Wayland compositors that lack these utilities
// simply yield probe errors, which samplers treat as skipped ticks.
type linuxProbe struct{}

func newPlatformProbe() Probe {
	return &linuxProbe{}
}

func (p *linuxProbe) ActiveWindow() (*models.WindowInfo, error) {
	out, err := exec.Command("xdotool", "getactivewindow", "getwindowpid", "getwindowname").Output()
	if err != nil {
		return nil, wrapErr("active-window", err)
	}

	lines := strings.SplitN(strings.TrimRight(string(out), "\n"), "\n", 2)
	if len(lines) < 2 {
		return nil, wrapErr("active-window", errors.New("unexpected xdotool output"))
	}

	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, wrapErr("active-window", fmt.Errorf("parsing pid: %w", err))
	}

	return &models.WindowInfo{
		AppName:     processName(pid),
		WindowTitle: lines[1],
		ProcessID:   pid,
	}, nil
}

func (p *linuxProbe) ActiveBrowserTab() (*models.BrowserTab, error) {
	// X11 exposes no cross-browser way to read the focused tab URL, so the
	// best available observation is the window title of a focused browser.
	win, err := p.ActiveWindow()
	if err != nil {
		return nil, err
	}

	browser := browserNameFor(win.AppName)
	if browser == "" {
		return nil, wrapErr("active-browser-tab", errors.New("active window is not a browser"))
	}

	// Browsers append their own name to the title ("Page - Mozilla Firefox").
	title := win.WindowTitle
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = title[:idx]
	}

	return &models.BrowserTab{
		BrowserName: browser,
		Title:       title,
	}, nil
}

func (p *linuxProbe) IdleSeconds() (int, error) {
	out, err := exec.Command("xprintidle").Output()
	if err != nil {
		return 0, wrapErr("idle-seconds", err)
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, wrapErr("idle-seconds", fmt.Errorf("parsing xprintidle output: %w", err))
	}
	return int(ms / 1000), nil
}

// processName resolves a pid to its command name via /proc.
func processName(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
