package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/charlie0129/activity-monitor-go/internal/models"
	"github.com/charlie0129/activity-monitor-go/internal/probe"
)

// Sample is one successful observation from a sample source.
type Sample struct {
	// ChangeKey identifies the observation for change detection (app name,
	// or URL/domain pair for browser tabs).
	ChangeKey string
	// CreditKey is the accumulation bucket the elapsed time is charged to
	// (app name or domain).
	CreditKey string
	// Event carries the variant fields for the change event. The sampler
	// fills in ID, Type, Time and Totals.
	Event models.ActivityEvent
}

// SampleFunc queries the platform for one observation. An error means "no
// observation this tick" and is never fatal.
type SampleFunc func() (Sample, error)

// Sampler polls a sample source on a fixed interval, accumulates per-key
// durations and emits a change event whenever the observed key changes.
//
// Time is credited one tick behind: the interval that just elapsed belongs to
// whatever was observed at its start, not to what is observed at its end.
type Sampler struct {
	mu sync.Mutex

	clock    Clock
	sched    Scheduler
	typ      models.EventType
	sample   SampleFunc
	emit     func(models.ActivityEvent)
	onCredit func(prev Sample, seconds float64)

	tracking    bool
	stopTimer   func()
	lastSample  Sample
	hasLast     bool
	lastTick    time.Time
	accumulated map[string]float64
}

// NewSampler builds a sampler over the given source. emit receives change
// events; onCredit (optional) observes every credited time slice.
func NewSampler(typ models.EventType, clock Clock, sched Scheduler, sample SampleFunc, emit func(models.ActivityEvent), onCredit func(Sample, float64)) *Sampler {
	return &Sampler{
		clock:       clock,
		sched:       sched,
		typ:         typ,
		sample:      sample,
		emit:        emit,
		onCredit:    onCredit,
		accumulated: make(map[string]float64),
	}
}

// WindowSampleFunc adapts the platform probe's active-window query.
func WindowSampleFunc(p probe.Probe) SampleFunc {
	return func() (Sample, error) {
		win, err := p.ActiveWindow()
		if err != nil {
			return Sample{}, err
		}
		return Sample{
			ChangeKey: win.AppName,
			CreditKey: win.AppName,
			Event: models.ActivityEvent{
				App:         win.AppName,
				WindowTitle: win.WindowTitle,
			},
		}, nil
	}
}

// BrowserSampleFunc adapts the platform probe's active-tab query. Change
// detection keys on the URL/domain pair; accumulation keys on the domain,
// falling back to the browser name when no domain is observable.
func BrowserSampleFunc(p probe.Probe) SampleFunc {
	return func() (Sample, error) {
		tab, err := p.ActiveBrowserTab()
		if err != nil {
			return Sample{}, err
		}
		credit := tab.Domain
		if credit == "" {
			credit = tab.BrowserName
		}
		return Sample{
			ChangeKey: tab.URL + "|" + tab.Domain,
			CreditKey: credit,
			Event: models.ActivityEvent{
				Browser:  tab.BrowserName,
				URL:      tab.URL,
				Domain:   tab.Domain,
				TabTitle: tab.Title,
			},
		}, nil
	}
}

// defaultSampleInterval is used when Start receives a non-positive interval,
// which time.Ticker would reject.
const defaultSampleInterval = 10 * time.Second

// Start begins sampling on the given interval. A running sampler is restarted
// with the new interval; accumulated durations are preserved. A non-positive
// interval falls back to the default.
func (s *Sampler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	s.mu.Lock()
	stop := s.stopTimer
	s.stopTimer = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}

	s.mu.Lock()
	s.tracking = true
	s.lastTick = time.Time{}
	s.hasLast = false
	s.stopTimer = s.sched.Every(interval, s.tick)
	s.mu.Unlock()
}

// Stop halts the timer after crediting the in-flight interval to the last
// observed key. Accumulated durations are preserved.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.tracking {
		s.mu.Unlock()
		return
	}
	s.tracking = false
	stop := s.stopTimer
	s.stopTimer = nil

	// Final credit for the interval that was in flight when we stopped.
	s.creditLocked(s.clock.Now())
	s.hasLast = false
	s.lastTick = time.Time{}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Reset clears the accumulated durations and the last observation. The timer,
// if running, keeps running.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulated = make(map[string]float64)
	s.hasLast = false
	s.lastTick = time.Time{}
}

// State returns the tracking flag and a copy of the accumulated durations.
func (s *Sampler) State() models.SamplerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SamplerState{
		Tracking:    s.tracking,
		Accumulated: copyTotals(s.accumulated),
	}
}

// Restore seeds the accumulated durations, typically from persisted state at
// boot. Existing entries are overwritten.
func (s *Sampler) Restore(totals map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range totals {
		s.accumulated[k] = v
	}
}

func (s *Sampler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracking {
		return
	}

	smp, err := s.sample()
	if err != nil {
		// No observation this tick: no event, no duration update. The next
		// successful tick credits the whole elapsed interval.
		return
	}

	now := s.clock.Now()
	s.creditLocked(now)

	if !s.hasLast || smp.ChangeKey != s.lastSample.ChangeKey {
		ev := smp.Event
		ev.ID = uuid.New().String()
		ev.Type = s.typ
		ev.Time = now.UTC()
		ev.Totals = copyTotals(s.accumulated)
		s.emit(ev)
	}

	s.lastSample = smp
	s.hasLast = true
	s.lastTick = now
}

// creditLocked charges the time elapsed since the previous tick to the key
// observed at that tick. Callers must hold s.mu.
func (s *Sampler) creditLocked(now time.Time) {
	if !s.hasLast || s.lastTick.IsZero() {
		return
	}
	secs := now.Sub(s.lastTick).Seconds()
	if secs <= 0 {
		return
	}
	s.accumulated[s.lastSample.CreditKey] += secs
	if s.onCredit != nil {
		s.onCredit(s.lastSample, secs)
	}
}

func copyTotals(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
