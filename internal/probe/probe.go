// Package probe interrogates the operating system for the active window, the
// active browser tab, and the user's idle time. Every query may fail (missing
// utility, denied permission); callers treat a failure as "no observation this
// tick", never as fatal.
package probe

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// Probe is the narrow platform capability surface. Implementations are
// read-only: a call has no side effects beyond the query itself.
type Probe interface {
	ActiveWindow() (*models.WindowInfo, error)
	ActiveBrowserTab() (*models.BrowserTab, error)
	IdleSeconds() (int, error)
}

// Error wraps a failed OS query.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// New returns the probe for the current operating system.
func New() Probe {
	return newPlatformProbe()
}

// browserNames maps process/application names to a canonical browser name.
// Substring match, lowercase.
var browserNames = map[string]string{
	"chrome":   "Google Chrome",
	"chromium": "Chromium",
	"firefox":  "Firefox",
	"safari":   "Safari",
	"edge":     "Microsoft Edge",
	"brave":    "Brave",
	"opera":    "Opera",
}

// browserNameFor returns the canonical browser name for an application name,
// or "" if the application is not a known browser.
func browserNameFor(appName string) string {
	lower := strings.ToLower(appName)
	for key, name := range browserNames {
		if strings.Contains(lower, key) {
			return name
		}
	}
	return ""
}

// domainOf extracts the host portion of a URL, with the www. prefix stripped.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	return strings.TrimPrefix(host, "www.")
}
