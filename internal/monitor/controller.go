package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/database"
	"github.com/charlie0129/activity-monitor-go/internal/models"
	"github.com/charlie0129/activity-monitor-go/internal/probe"
	"github.com/charlie0129/activity-monitor-go/internal/uploader"
)

// Axis names for persisted time totals.
const (
	axisApp    = "app"
	axisDomain = "domain"
)

// Options configures a Controller.
type Options struct {
	Clock     Clock
	Scheduler Scheduler
	Probe     probe.Probe
	DB        *database.DB
	Sink      EventSink
	Rules     models.RuleSet

	WindowInterval  time.Duration
	BrowserInterval time.Duration
	IdlePoll        time.Duration
	IdleThreshold   time.Duration

	UploadClient *uploader.Client
	UploadQueue  *uploader.Queue
}

// Controller owns every monitoring component and is the only mutation path
// callers have. There is no package-level state: multiple controllers can
// coexist, which is how the tests run.
type Controller struct {
	clock Clock
	db    *database.DB
	sink  EventSink

	windows    *Sampler
	browser    *Sampler
	idle       *IdleMonitor
	session    *SessionMachine
	classifier *Classifier

	uploadClient *uploader.Client
	uploadQueue  *uploader.Queue

	windowInterval  time.Duration
	browserInterval time.Duration
	idlePoll        time.Duration
	idleThreshold   time.Duration
}

// NewController wires all components together. Accumulated time totals from a
// previous run are restored from the database.
func NewController(opts Options) *Controller {
	c := &Controller{
		clock:           opts.Clock,
		db:              opts.DB,
		sink:            opts.Sink,
		uploadClient:    opts.UploadClient,
		uploadQueue:     opts.UploadQueue,
		windowInterval:  opts.WindowInterval,
		browserInterval: opts.BrowserInterval,
		idlePoll:        opts.IdlePoll,
		idleThreshold:   opts.IdleThreshold,
	}
	if c.sink == nil {
		c.sink = NopSink()
	}

	c.classifier = NewClassifier(opts.Clock, opts.Rules, c.publish)
	c.session = NewSessionMachine(opts.Clock, c.publish)
	c.idle = NewIdleMonitor(opts.Clock, opts.Scheduler, opts.Probe.IdleSeconds, c.publish,
		func() { c.session.Pause(models.PauseIdle) },
		c.session.AutoResume)

	c.windows = NewSampler(models.EventWindow, opts.Clock, opts.Scheduler,
		WindowSampleFunc(opts.Probe), c.publish,
		func(prev Sample, seconds float64) {
			c.classifier.Record(prev.Event.App, "", seconds)
		})
	c.browser = NewSampler(models.EventBrowser, opts.Clock, opts.Scheduler,
		BrowserSampleFunc(opts.Probe), c.publish,
		func(prev Sample, seconds float64) {
			c.classifier.Record(prev.Event.Browser, prev.Event.Domain, seconds)
		})

	c.restoreTotals()
	return c
}

// publish delivers an event to the sink, appends it to persisted history and
// records it against the in-flight focus session.
func (c *Controller) publish(ev models.ActivityEvent) {
	c.sink.Publish(ev)

	if c.db != nil {
		if err := c.db.InsertEvent(ev); err != nil {
			slog.Error("failed to persist event", "type", ev.Type, "error", err)
		}
	}

	if ev.Type == models.EventWindow || ev.Type == models.EventBrowser {
		c.session.RecordActivity(ev.ID)
	}
}

func (c *Controller) restoreTotals() {
	if c.db == nil {
		return
	}
	if totals, err := c.db.LoadTimeTotals(axisApp); err == nil && len(totals) > 0 {
		c.windows.Restore(totals)
	}
	if totals, err := c.db.LoadTimeTotals(axisDomain); err == nil && len(totals) > 0 {
		c.browser.Restore(totals)
	}
}

func (c *Controller) flushTotals() {
	if c.db == nil {
		return
	}
	if err := c.db.SaveTimeTotals(axisApp, c.windows.State().Accumulated); err != nil {
		slog.Error("failed to save app time totals", "error", err)
	}
	if err := c.db.SaveTimeTotals(axisDomain, c.browser.State().Accumulated); err != nil {
		slog.Error("failed to save domain time totals", "error", err)
	}
}

// --- Sampling control ---

func (c *Controller) StartWindowSampling(interval time.Duration) {
	if interval <= 0 {
		interval = c.windowInterval
	}
	c.windows.Start(interval)
	slog.Info("window sampling started", "interval", interval)
}

func (c *Controller) StopWindowSampling() {
	c.windows.Stop()
	c.flushTotals()
	slog.Info("window sampling stopped")
}

func (c *Controller) StartBrowserSampling(interval time.Duration) {
	if interval <= 0 {
		interval = c.browserInterval
	}
	c.browser.Start(interval)
	slog.Info("browser sampling started", "interval", interval)
}

func (c *Controller) StopBrowserSampling() {
	c.browser.Stop()
	c.flushTotals()
	slog.Info("browser sampling stopped")
}

// ResetTracking clears accumulated time maps and productivity stats. Running
// samplers keep running.
func (c *Controller) ResetTracking() {
	c.windows.Reset()
	c.browser.Reset()
	c.classifier.Reset()
	c.flushTotals()
	slog.Info("tracking data reset")
}

func (c *Controller) WindowState() models.SamplerState {
	return c.windows.State()
}

func (c *Controller) BrowserState() models.SamplerState {
	return c.browser.State()
}

// --- Idle monitor control ---

func (c *Controller) StartIdleMonitor(threshold time.Duration) {
	if threshold <= 0 {
		threshold = c.idleThreshold
	}
	c.idle.Start(c.idlePoll, threshold)
	slog.Info("idle monitor started", "poll", c.idlePoll, "threshold", threshold)
}

func (c *Controller) StopIdleMonitor() {
	c.idle.Stop()
	slog.Info("idle monitor stopped")
}

func (c *Controller) IdleState() models.IdleState {
	return c.idle.State()
}

// System power/session signals, forwarded by the host process.

func (c *Controller) SignalSuspend() { c.idle.Suspend() }
func (c *Controller) SignalResume()  { c.idle.Resume() }
func (c *Controller) SignalLock()    { c.idle.Lock() }
func (c *Controller) SignalUnlock()  { c.idle.Unlock() }

// --- Focus session control ---

func (c *Controller) StartFocusSession(targetDurationSeconds int) (*models.FocusSession, error) {
	return c.session.Start(targetDurationSeconds)
}

func (c *Controller) PauseFocusSession(reason models.PauseReason) {
	c.session.Pause(reason)
}

func (c *Controller) ResumeFocusSession() {
	c.session.Resume()
}

func (c *Controller) EndFocusSession(reason EndReason) (*models.FocusSession, error) {
	return c.session.End(reason)
}

func (c *Controller) CurrentSession() *models.FocusSession {
	return c.session.Current()
}

// --- Productivity ---

func (c *Controller) UpdateRules(rs *models.RuleSet) error {
	return c.classifier.UpdateRules(rs)
}

func (c *Controller) Rules() models.RuleSet {
	return c.classifier.Rules()
}

func (c *Controller) Stats() models.ProductivityStats {
	return c.classifier.Stats()
}

// --- Uploads ---

// ConfigureUpload repoints the uploader at a new collector endpoint and
// updates the delete-after-upload policy.
func (c *Controller) ConfigureUpload(endpoint string, deleteAfterUpload bool) {
	if c.uploadClient != nil {
		c.uploadClient.SetEndpoint(endpoint)
	}
	if c.uploadQueue != nil {
		c.uploadQueue.SetDeleteAfterUpload(deleteAfterUpload)
	}
	slog.Info("upload endpoint configured", "endpoint", endpoint, "delete_after_upload", deleteAfterUpload)
}

// SubmitArtifact hands a captured artifact to the upload queue and returns
// the assigned artifact ID.
func (c *Controller) SubmitArtifact(ctx context.Context, path string) string {
	if c.uploadQueue == nil {
		return ""
	}
	return c.uploadQueue.Submit(ctx, path)
}

func (c *Controller) CancelUpload(artifactID string) bool {
	if c.uploadQueue == nil {
		return false
	}
	return c.uploadQueue.Cancel(artifactID)
}

func (c *Controller) QueueStatus() models.QueueStatus {
	if c.uploadQueue == nil {
		return models.QueueStatus{Items: []models.QueueStatusItem{}}
	}
	return c.uploadQueue.Status()
}

// --- Lifecycle ---

// Shutdown performs final accounting and stops every component. In-flight
// uploads are allowed to complete.
func (c *Controller) Shutdown() {
	c.windows.Stop()
	c.browser.Stop()
	c.idle.Stop()
	c.flushTotals()
	if c.uploadQueue != nil {
		c.uploadQueue.Stop()
	}
}
