package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	rs, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs.ProductiveApps) == 0 || len(rs.UnproductiveDomains) == 0 {
		t.Errorf("default rule set looks empty: %+v", rs)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `productive_apps:
  - code
  - goland
blocked_domains:
  - gambling.example
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs.ProductiveApps) != 2 || rs.ProductiveApps[0] != "code" {
		t.Errorf("productive apps = %v", rs.ProductiveApps)
	}
	if len(rs.BlockedDomains) != 1 || rs.BlockedDomains[0] != "gambling.example" {
		t.Errorf("blocked domains = %v", rs.BlockedDomains)
	}
	// Lists absent from the file stay nil so partial updates keep current values.
	if rs.NeutralApps != nil {
		t.Errorf("neutral apps = %v, want nil", rs.NeutralApps)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("productive_apps: {oops"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestWatchAppliesFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("productive_apps: [code]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan *models.RuleSet, 4)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- Watch(ctx, path, func(rs *models.RuleSet) error {
			applied <- rs
			return nil
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte("productive_apps: [code, goland]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case rs := <-applied:
		if len(rs.ProductiveApps) != 2 {
			t.Errorf("applied rules = %v", rs.ProductiveApps)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("rules change never applied")
	}

	cancel()
	select {
	case err := <-watchErr:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

// A write that fails to parse is skipped; the watcher keeps running and a
// later good write still lands.
func TestWatchSkipsMalformedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("productive_apps: [code]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan *models.RuleSet, 4)
	go func() {
		_ = Watch(ctx, path, func(rs *models.RuleSet) error {
			applied <- rs
			return nil
		})
	}()

	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte("productive_apps: {broken"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("productive_apps: [vim]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case rs := <-applied:
			if len(rs.ProductiveApps) == 1 && rs.ProductiveApps[0] == "vim" {
				return
			}
		case <-deadline:
			t.Fatal("good write after malformed one never applied")
		}
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("productive_apps: [code]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan *models.RuleSet, 4)
	go func() {
		_ = Watch(ctx, path, func(rs *models.RuleSet) error {
			applied <- rs
			return nil
		})
	}()

	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case rs := <-applied:
		t.Errorf("unrelated file triggered apply: %+v", rs)
	case <-time.After(500 * time.Millisecond):
	}
}
