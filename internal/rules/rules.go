// Package rules loads the productivity rule set from a YAML file and watches
// it for changes.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// Default returns the built-in rule set used when no rules file exists.
func Default() models.RuleSet {
	return models.RuleSet{
		ProductiveApps:   []string{"code", "goland", "intellij", "terminal", "iterm"},
		UnproductiveApps: []string{"steam", "discord"},
		ProductiveDomains: []string{
			"github.com", "stackoverflow.com", "pkg.go.dev", "developer.mozilla.org",
		},
		UnproductiveDomains: []string{
			"youtube.com", "reddit.com", "twitter.com", "x.com", "instagram.com",
		},
	}
}

// Load reads a rule set from a YAML file. A missing file yields the default
// rule set; a malformed file is an error and the caller keeps its current set.
func Load(path string) (*models.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			rs := Default()
			return &rs, nil
		}
		return nil, err
	}

	var rs models.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return &rs, nil
}

// Watch reloads the rules file whenever it changes and hands the parsed set
// to apply. A reload that fails to parse or apply is logged and skipped; the
// previously applied set stays in force. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, apply func(*models.RuleSet) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the containing directory: editors replace files via rename, which
	// would silently detach a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			rs, err := Load(path)
			if err != nil {
				slog.Error("rules reload failed, keeping previous set", "path", path, "error", err)
				continue
			}
			if err := apply(rs); err != nil {
				slog.Error("rules rejected, keeping previous set", "path", path, "error", err)
				continue
			}
			slog.Info("rules reloaded", "path", path)

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; keep watching.
		}
	}
}
