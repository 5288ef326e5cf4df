//go:build !linux && !darwin && !windows

package probe

import (
	"errors"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

var errUnsupported = errors.New("platform not supported")

type unsupportedProbe struct{}

func newPlatformProbe() Probe {
	return &unsupportedProbe{}
}

func (p *unsupportedProbe) ActiveWindow() (*models.WindowInfo, error) {
	return nil, wrapErr("active-window", errUnsupported)
}

func (p *unsupportedProbe) ActiveBrowserTab() (*models.BrowserTab, error) {
	return nil, wrapErr("active-browser-tab", errUnsupported)
}

func (p *unsupportedProbe) IdleSeconds() (int, error) {
	return 0, wrapErr("idle-seconds", errUnsupported)
}
