package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":3041" {
		t.Errorf("listen addr = %q, want :3041", cfg.ListenAddr)
	}
	if cfg.WindowInterval() != 10*time.Second {
		t.Errorf("window interval = %v, want 10s", cfg.WindowInterval())
	}
	if cfg.IdlePollInterval() != 5*time.Second {
		t.Errorf("idle poll = %v, want 5s", cfg.IdlePollInterval())
	}
	if cfg.IdleThreshold() != 60*time.Second {
		t.Errorf("idle threshold = %v, want 60s", cfg.IdleThreshold())
	}
	if cfg.UploadInitialDelay() != time.Second {
		t.Errorf("initial delay = %v, want 1s", cfg.UploadInitialDelay())
	}
	if cfg.UploadMaxDelay() != 60*time.Second {
		t.Errorf("max delay = %v, want 60s", cfg.UploadMaxDelay())
	}
	if cfg.UploadMaxRetries != 7 {
		t.Errorf("max retries = %d, want 7", cfg.UploadMaxRetries)
	}
	if cfg.UploadFieldName != "artifact" {
		t.Errorf("field name = %q, want artifact", cfg.UploadFieldName)
	}
	if cfg.EventRetention() != 90*24*time.Hour {
		t.Errorf("retention = %v, want 2160h", cfg.EventRetention())
	}
	if cfg.RollupSchedule != "5 0 * * *" {
		t.Errorf("rollup schedule = %q", cfg.RollupSchedule)
	}
}

func TestLoadFillsMissingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `listen_addr: ":8080"
window_interval_seconds: 30
upload_url: "https://collector.example/v1/artifacts"
delete_after_upload: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.WindowInterval() != 30*time.Second {
		t.Errorf("window interval = %v, want 30s", cfg.WindowInterval())
	}
	if cfg.UploadURL != "https://collector.example/v1/artifacts" {
		t.Errorf("upload url = %q", cfg.UploadURL)
	}
	if !cfg.DeleteAfterUpload {
		t.Error("delete_after_upload not parsed")
	}

	// Unset fields fall back to defaults.
	if cfg.BrowserInterval() != 10*time.Second {
		t.Errorf("browser interval = %v, want 10s", cfg.BrowserInterval())
	}
	if cfg.UploadMaxRetries != 7 {
		t.Errorf("max retries = %d, want 7", cfg.UploadMaxRetries)
	}
	if cfg.DatabasePath != "monitor.db" {
		t.Errorf("database path = %q, want monitor.db", cfg.DatabasePath)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [not, a, string"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestGetTimezone(t *testing.T) {
	cfg := &Config{Timezone: "UTC"}
	if got := cfg.GetTimezone(); got != time.UTC {
		t.Errorf("timezone = %v, want UTC", got)
	}

	cfg.Timezone = "not/a-zone"
	if got := cfg.GetTimezone(); got != time.Local {
		t.Errorf("bad timezone = %v, want Local fallback", got)
	}
}
