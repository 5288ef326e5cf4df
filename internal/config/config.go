package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	DatabasePath string `yaml:"database_path"`
	RulesPath    string `yaml:"rules_path"`
	Timezone     string `yaml:"timezone"`

	// Sampling
	WindowIntervalSeconds  int `yaml:"window_interval_seconds"`
	BrowserIntervalSeconds int `yaml:"browser_interval_seconds"`
	IdlePollSeconds        int `yaml:"idle_poll_seconds"`
	IdleThresholdSeconds   int `yaml:"idle_threshold_seconds"`

	// Uploads
	UploadURL            string `yaml:"upload_url"`
	UploadFieldName      string `yaml:"upload_field_name"`
	DeleteAfterUpload    bool   `yaml:"delete_after_upload"`
	UploadMaxRetries     int    `yaml:"upload_max_retries"`
	UploadInitialDelayMS int    `yaml:"upload_initial_delay_ms"`
	UploadMaxDelayMS     int    `yaml:"upload_max_delay_ms"`
	UploadDrainSeconds   int    `yaml:"upload_drain_seconds"`

	// Rollups
	RollupSchedule     string `yaml:"rollup_schedule"` // cron expression for daily rollup
	EventRetentionDays int    `yaml:"event_retention_days"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3041"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "monitor.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.WindowIntervalSeconds <= 0 {
		cfg.WindowIntervalSeconds = 10
	}
	if cfg.BrowserIntervalSeconds <= 0 {
		cfg.BrowserIntervalSeconds = 10
	}
	if cfg.IdlePollSeconds <= 0 {
		cfg.IdlePollSeconds = 5
	}
	if cfg.IdleThresholdSeconds <= 0 {
		cfg.IdleThresholdSeconds = 60
	}
	if cfg.UploadFieldName == "" {
		cfg.UploadFieldName = "artifact"
	}
	if cfg.UploadMaxRetries <= 0 {
		cfg.UploadMaxRetries = 7
	}
	if cfg.UploadInitialDelayMS <= 0 {
		cfg.UploadInitialDelayMS = 1000
	}
	if cfg.UploadMaxDelayMS <= 0 {
		cfg.UploadMaxDelayMS = 60000
	}
	if cfg.UploadDrainSeconds <= 0 {
		cfg.UploadDrainSeconds = 10
	}
	if cfg.RollupSchedule == "" {
		cfg.RollupSchedule = "5 0 * * *" // shortly after midnight
	}
	if cfg.EventRetentionDays <= 0 {
		cfg.EventRetentionDays = 90
	}

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:             ":3041",
		DatabasePath:           "monitor.db",
		Timezone:               "Local",
		WindowIntervalSeconds:  10,
		BrowserIntervalSeconds: 10,
		IdlePollSeconds:        5,
		IdleThresholdSeconds:   60,
		UploadFieldName:        "artifact",
		UploadMaxRetries:       7,
		UploadInitialDelayMS:   1000,
		UploadMaxDelayMS:       60000,
		UploadDrainSeconds:     10,
		RollupSchedule:         "5 0 * * *",
		EventRetentionDays:     90,
	}
}

func (c *Config) GetTimezone() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) WindowInterval() time.Duration {
	return time.Duration(c.WindowIntervalSeconds) * time.Second
}

func (c *Config) BrowserInterval() time.Duration {
	return time.Duration(c.BrowserIntervalSeconds) * time.Second
}

func (c *Config) IdlePollInterval() time.Duration {
	return time.Duration(c.IdlePollSeconds) * time.Second
}

func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSeconds) * time.Second
}

func (c *Config) UploadInitialDelay() time.Duration {
	return time.Duration(c.UploadInitialDelayMS) * time.Millisecond
}

func (c *Config) UploadMaxDelay() time.Duration {
	return time.Duration(c.UploadMaxDelayMS) * time.Millisecond
}

func (c *Config) UploadDrainInterval() time.Duration {
	return time.Duration(c.UploadDrainSeconds) * time.Second
}

func (c *Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}
