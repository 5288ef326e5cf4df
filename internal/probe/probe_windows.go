//go:build windows

package probe

import (
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// windowsProbe shells out to PowerShell. Win32 interop is done inside the
// scripts via Add-Type so the daemon itself needs no cgo.
type windowsProbe struct{}

func newPlatformProbe() Probe {
	return &windowsProbe{}
}

const activeWindowPS = `
Add-Type @"
using System;
using System.Runtime.InteropServices;
public class FG {
  [DllImport("user32.dll")] public static extern IntPtr GetForegroundWindow();
  [DllImport("user32.dll")] public static extern int GetWindowText(IntPtr h, System.Text.StringBuilder s, int n);
  [DllImport("user32.dll")] public static extern uint GetWindowThreadProcessId(IntPtr h, out uint pid);
}
"@
$h = [FG]::GetForegroundWindow()
$sb = New-Object System.Text.StringBuilder 512
[void][FG]::GetWindowText($h, $sb, $sb.Capacity)
$procId = 0
[void][FG]::GetWindowThreadProcessId($h, [ref]$procId)
$name = (Get-Process -Id $procId -ErrorAction SilentlyContinue).ProcessName
Write-Output "$name`n$procId`n$($sb.ToString())"`

const idleSecondsPS = `
Add-Type @"
using System;
using System.Runtime.InteropServices;
public class II {
  [StructLayout(LayoutKind.Sequential)] public struct LASTINPUTINFO { public uint cbSize; public uint dwTime; }
  [DllImport("user32.dll")] public static extern bool GetLastInputInfo(ref LASTINPUTINFO plii);
}
"@
$lii = New-Object II+LASTINPUTINFO
$lii.cbSize = [System.Runtime.InteropServices.Marshal]::SizeOf($lii)
[void][II]::GetLastInputInfo([ref]$lii)
Write-Output ([int](([Environment]::TickCount - $lii.dwTime) / 1000))`

func runPowerShell(script string) (string, error) {
	out, err := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}

func (p *windowsProbe) ActiveWindow() (*models.WindowInfo, error) {
	out, err := runPowerShell(activeWindowPS)
	if err != nil {
		return nil, wrapErr("active-window", err)
	}

	parts := strings.SplitN(strings.ReplaceAll(out, "\r\n", "\n"), "\n", 3)
	if len(parts) < 3 {
		return nil, wrapErr("active-window", errors.New("unexpected powershell output"))
	}

	pid, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	return &models.WindowInfo{
		AppName:     parts[0],
		WindowTitle: parts[2],
		ProcessID:   pid,
	}, nil
}

func (p *windowsProbe) ActiveBrowserTab() (*models.BrowserTab, error) {
	// Windows exposes no scriptable cross-browser tab API; report the focused
	// browser's window title, which carries the page title.
	win, err := p.ActiveWindow()
	if err != nil {
		return nil, err
	}

	browser := browserNameFor(win.AppName)
	if browser == "" {
		return nil, wrapErr("active-browser-tab", errors.New("active window is not a browser"))
	}

	title := win.WindowTitle
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = title[:idx]
	}

	return &models.BrowserTab{
		BrowserName: browser,
		Title:       title,
	}, nil
}

func (p *windowsProbe) IdleSeconds() (int, error) {
	out, err := runPowerShell(idleSecondsPS)
	if err != nil {
		return 0, wrapErr("idle-seconds", err)
	}

	secs, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, wrapErr("idle-seconds", err)
	}
	if secs < 0 {
		secs = 0
	}
	return secs, nil
}
