package monitor

import (
	"sync"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// IdleMonitor converts periodic idle-seconds samples plus immediate
// suspend/resume/lock/unlock signals into ACTIVE/IDLE transitions with
// hysteresis. It is always in exactly one of the two states.
type IdleMonitor struct {
	mu sync.Mutex

	clock     Clock
	sched     Scheduler
	idleSecs  func() (int, error)
	threshold time.Duration
	emit      func(models.ActivityEvent)

	// onIdle / onActive fire on transitions, outside the hold of mu.
	// The controller wires them to the focus session machine.
	onIdle   func()
	onActive func()

	running   bool
	stopTimer func()
	state     models.IdleState
	since     time.Time
}

// NewIdleMonitor builds an idle monitor over the given idle-seconds source.
func NewIdleMonitor(clock Clock, sched Scheduler, idleSecs func() (int, error), emit func(models.ActivityEvent), onIdle, onActive func()) *IdleMonitor {
	return &IdleMonitor{
		clock:    clock,
		sched:    sched,
		idleSecs: idleSecs,
		emit:     emit,
		onIdle:   onIdle,
		onActive: onActive,
		state:    models.IdleStateActive,
	}
}

// Poll defaults used when Start receives non-positive values.
const (
	defaultIdlePoll      = 5 * time.Second
	defaultIdleThreshold = 60 * time.Second
)

// Start begins polling on the given interval with the given threshold. A
// running monitor is restarted. Non-positive values fall back to defaults.
func (m *IdleMonitor) Start(interval, threshold time.Duration) {
	if interval <= 0 {
		interval = defaultIdlePoll
	}
	if threshold <= 0 {
		threshold = defaultIdleThreshold
	}
	m.mu.Lock()
	stop := m.stopTimer
	m.stopTimer = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}

	m.mu.Lock()
	m.running = true
	m.threshold = threshold
	m.state = models.IdleStateActive
	m.since = m.clock.Now()
	m.stopTimer = m.sched.Every(interval, m.tick)
	m.mu.Unlock()
}

// Stop halts polling. The state is left as is.
func (m *IdleMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop := m.stopTimer
	m.stopTimer = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// State returns the current idle state.
func (m *IdleMonitor) State() models.IdleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether the monitor is polling.
func (m *IdleMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Suspend forces the IDLE state immediately (system sleep signal).
func (m *IdleMonitor) Suspend() { m.forceIdle(0) }

// Lock forces the IDLE state immediately (session lock signal).
func (m *IdleMonitor) Lock() { m.forceIdle(0) }

// Resume forces the ACTIVE state immediately (system wake signal).
func (m *IdleMonitor) Resume() { m.forceActive(0) }

// Unlock forces the ACTIVE state immediately (session unlock signal).
func (m *IdleMonitor) Unlock() { m.forceActive(0) }

func (m *IdleMonitor) tick() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	secs, err := m.idleSecs()
	if err != nil {
		// No observation this tick; keep the current state.
		m.mu.Unlock()
		return
	}

	idle := time.Duration(secs) * time.Second
	switch {
	case m.state == models.IdleStateActive && idle >= m.threshold:
		m.mu.Unlock()
		m.forceIdle(secs)
	case m.state == models.IdleStateIdle && idle < m.threshold:
		m.mu.Unlock()
		m.forceActive(secs)
	default:
		m.mu.Unlock()
	}
}

// forceIdle transitions to IDLE if not already there, emitting an event that
// carries the duration of the active period just ended.
func (m *IdleMonitor) forceIdle(idleSecs int) {
	m.mu.Lock()
	if m.state == models.IdleStateIdle {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	ended := now.Sub(m.since).Seconds()
	m.state = models.IdleStateIdle
	m.since = now

	ev := newEvent(models.EventIdle, now)
	ev.IdleSeconds = idleSecs
	ev.DurationSeconds = ended
	emit := m.emit
	onIdle := m.onIdle
	m.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
	if onIdle != nil {
		onIdle()
	}
}

// forceActive transitions to ACTIVE if not already there, emitting an event
// that carries the duration of the idle period just ended.
func (m *IdleMonitor) forceActive(idleSecs int) {
	m.mu.Lock()
	if m.state == models.IdleStateActive {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	ended := now.Sub(m.since).Seconds()
	m.state = models.IdleStateActive
	m.since = now

	ev := newEvent(models.EventActive, now)
	ev.IdleSeconds = idleSecs
	ev.DurationSeconds = ended
	emit := m.emit
	onActive := m.onActive
	m.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
	if onActive != nil {
		onActive()
	}
}
