package models

import (
	"time"
)

// EventType discriminates the ActivityEvent union.
type EventType string

const (
	EventWindow       EventType = "window"
	EventBrowser      EventType = "browser"
	EventIdle         EventType = "idle"
	EventActive       EventType = "active"
	EventFocusStart   EventType = "focus_start"
	EventFocusPause   EventType = "focus_pause"
	EventFocusResume  EventType = "focus_resume"
	EventFocusEnd     EventType = "focus_end"
	EventProductivity EventType = "productivity"
)

// Category is a productivity classification bucket.
type Category string

const (
	CategoryProductive   Category = "productive"
	CategoryNeutral      Category = "neutral"
	CategoryUnproductive Category = "unproductive"
	CategoryBlocked      Category = "blocked"
)

// ActivityEvent is a single observed state change. Events are immutable once
// created and appended to history in order. Only the fields relevant to the
// event type are populated.
type ActivityEvent struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Time time.Time `json:"time"` // always UTC

	// window / browser variants
	App         string             `json:"app,omitempty"`
	WindowTitle string             `json:"window_title,omitempty"`
	Browser     string             `json:"browser,omitempty"`
	URL         string             `json:"url,omitempty"`
	Domain      string             `json:"domain,omitempty"`
	TabTitle    string             `json:"tab_title,omitempty"`
	Totals      map[string]float64 `json:"totals,omitempty"` // accumulated seconds snapshot

	// idle / active variants
	IdleSeconds     int     `json:"idle_seconds,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"` // length of the period just ended

	// focus_* variants
	SessionID string `json:"session_id,omitempty"`

	// productivity variant
	Category Category           `json:"category,omitempty"`
	Score    int                `json:"score,omitempty"`
	Stats    *ProductivityStats `json:"stats,omitempty"`
}

// WindowInfo is one active-window observation from the platform probe.
type WindowInfo struct {
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title"`
	ProcessID   int    `json:"process_id"`
}

// BrowserTab is one active-browser-tab observation from the platform probe.
type BrowserTab struct {
	BrowserName string `json:"browser_name"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	Title       string `json:"title"`
}

// SessionStatus is the lifecycle state of a focus session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the session can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// PauseReason records why a focus session was paused.
type PauseReason string

const (
	PauseManual      PauseReason = "manual"
	PauseIdle        PauseReason = "idle"
	PauseDistraction PauseReason = "distraction"
)

// FocusSession is a user-bounded, pausable timed productivity interval.
// At most one non-terminal session exists at any time.
type FocusSession struct {
	ID                    string        `json:"id"`
	StartTime             time.Time     `json:"start_time"`
	EndTime               *time.Time    `json:"end_time,omitempty"`
	TargetDurationSeconds int           `json:"target_duration_seconds"`
	ActualDurationSeconds float64       `json:"actual_duration_seconds"`
	PausedDurationSeconds float64       `json:"paused_duration_seconds"`
	DistractionCount      int           `json:"distraction_count"`
	Status                SessionStatus `json:"status"`
	Score                 int           `json:"score"`
	Activities            []string      `json:"activities"` // event IDs observed during the session
}

// ProductivityStats is the running category breakdown of classified time.
// TotalSeconds always equals the sum of the four category fields.
type ProductivityStats struct {
	ProductiveSeconds   float64 `json:"productive_seconds"`
	NeutralSeconds      float64 `json:"neutral_seconds"`
	UnproductiveSeconds float64 `json:"unproductive_seconds"`
	BlockedSeconds      float64 `json:"blocked_seconds"`
	TotalSeconds        float64 `json:"total_seconds"`
	Score               int     `json:"score"`
}

// RuleSet is the classification rule configuration: four pattern lists per
// axis (application name, domain). Matching is case-insensitive substring in
// either direction. A nil slice on update means "keep the current list"; an
// empty non-nil slice clears it.
type RuleSet struct {
	ProductiveApps   []string `yaml:"productive_apps" json:"productive_apps"`
	NeutralApps      []string `yaml:"neutral_apps" json:"neutral_apps"`
	UnproductiveApps []string `yaml:"unproductive_apps" json:"unproductive_apps"`
	BlockedApps      []string `yaml:"blocked_apps" json:"blocked_apps"`

	ProductiveDomains   []string `yaml:"productive_domains" json:"productive_domains"`
	NeutralDomains      []string `yaml:"neutral_domains" json:"neutral_domains"`
	UnproductiveDomains []string `yaml:"unproductive_domains" json:"unproductive_domains"`
	BlockedDomains      []string `yaml:"blocked_domains" json:"blocked_domains"`
}

// UploadQueueItem is one pending (or abandoned) artifact upload retry.
type UploadQueueItem struct {
	ArtifactID   string    `json:"artifact_id"`
	Path         string    `json:"path"`
	RetryCount   int       `json:"retry_count"`
	BackoffCount int       `json:"backoff_count"` // excludes rate-limited attempts
	NextRetry    time.Time `json:"next_retry"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// QueueStatus is the externally visible upload queue state.
type QueueStatus struct {
	QueueSize int               `json:"queue_size"`
	Abandoned int               `json:"abandoned"`
	Items     []QueueStatusItem `json:"items"`
}

// QueueStatusItem is one queue entry in a QueueStatus report.
type QueueStatusItem struct {
	ArtifactID string    `json:"artifact_id"`
	RetryCount int       `json:"retry_count"`
	NextRetry  time.Time `json:"next_retry"`
}

// SamplerState is a snapshot of one activity sampler.
type SamplerState struct {
	Tracking    bool               `json:"tracking"`
	Accumulated map[string]float64 `json:"accumulated"`
}

// IdleState is the idle monitor's current state.
type IdleState string

const (
	IdleStateActive IdleState = "active"
	IdleStateIdle   IdleState = "idle"
)

// DailyRollup is one persisted per-day productivity aggregate.
type DailyRollup struct {
	Day                 time.Time `json:"day"`
	ProductiveSeconds   float64   `json:"productive_seconds"`
	NeutralSeconds      float64   `json:"neutral_seconds"`
	UnproductiveSeconds float64   `json:"unproductive_seconds"`
	BlockedSeconds      float64   `json:"blocked_seconds"`
	TotalSeconds        float64   `json:"total_seconds"`
	Score               int       `json:"score"`
	CreatedAt           time.Time `json:"created_at"`
}
