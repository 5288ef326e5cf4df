//go:build darwin

package probe

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// darwinProbe shells out to osascript for window/tab information and ioreg
// for idle time. AppleScript access to other applications requires the
// Automation permission; a denial surfaces as a probe error.
type darwinProbe struct{}

func newPlatformProbe() Probe {
	return &darwinProbe{}
}

const activeWindowScript = `
tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set appPID to unix id of frontApp
	set windowTitle to ""
	try
		set windowTitle to name of front window of frontApp
	end try
end tell
return appName & "\n" & appPID & "\n" & windowTitle`

func (p *darwinProbe) ActiveWindow() (*models.WindowInfo, error) {
	out, err := exec.Command("osascript", "-e", activeWindowScript).Output()
	if err != nil {
		return nil, wrapErr("active-window", err)
	}

	parts := strings.SplitN(strings.TrimRight(string(out), "\n"), "\n", 3)
	if len(parts) < 2 {
		return nil, wrapErr("active-window", errors.New("unexpected osascript output"))
	}

	pid, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	title := ""
	if len(parts) == 3 {
		title = parts[2]
	}

	return &models.WindowInfo{
		AppName:     parts[0],
		WindowTitle: title,
		ProcessID:   pid,
	}, nil
}

func (p *darwinProbe) ActiveBrowserTab() (*models.BrowserTab, error) {
	win, err := p.ActiveWindow()
	if err != nil {
		return nil, err
	}

	browser := browserNameFor(win.AppName)
	if browser == "" {
		return nil, wrapErr("active-browser-tab", errors.New("active window is not a browser"))
	}

	script := tabScriptFor(browser)
	if script == "" {
		return nil, wrapErr("active-browser-tab", fmt.Errorf("no tab script for %s", browser))
	}

	out, err := exec.Command("osascript", "-e", script).Output()
	if err != nil {
		return nil, wrapErr("active-browser-tab", err)
	}

	parts := strings.SplitN(strings.TrimRight(string(out), "\n"), "\n", 2)
	if len(parts) < 2 {
		return nil, wrapErr("active-browser-tab", errors.New("unexpected osascript output"))
	}

	rawURL := strings.TrimSpace(parts[0])
	return &models.BrowserTab{
		BrowserName: browser,
		URL:         rawURL,
		Domain:      domainOf(rawURL),
		Title:       parts[1],
	}, nil
}

// tabScriptFor returns the AppleScript that reads the focused tab's URL and
// title for the given browser, or "" when the browser is not scriptable.
func tabScriptFor(browser string) string {
	switch browser {
	case "Safari":
		return `tell application "Safari" to return (URL of current tab of front window) & "\n" & (name of current tab of front window)`
	case "Google Chrome", "Chromium", "Brave", "Microsoft Edge":
		app := browser
		if app == "Brave" {
			app = "Brave Browser"
		}
		return fmt.Sprintf(`tell application "%s" to return (URL of active tab of front window) & "\n" & (title of active tab of front window)`, app)
	default:
		return ""
	}
}

func (p *darwinProbe) IdleSeconds() (int, error) {
	// HIDIdleTime is reported in nanoseconds.
	out, err := exec.Command("sh", "-c",
		`ioreg -c IOHIDSystem | awk '/HIDIdleTime/ {print $NF; exit}'`).Output()
	if err != nil {
		return 0, wrapErr("idle-seconds", err)
	}

	ns, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, wrapErr("idle-seconds", fmt.Errorf("parsing ioreg output: %w", err))
	}
	return int(ns / 1_000_000_000), nil
}
