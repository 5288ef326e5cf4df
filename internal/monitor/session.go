package monitor

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

var (
	// ErrSessionActive is returned by Start when a non-terminal session exists.
	ErrSessionActive = errors.New("focus session already active")
	// ErrNoSession is returned by End when no session exists.
	ErrNoSession = errors.New("no active focus session")
)

// EndReason tells End how the session finished.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndCancelled EndReason = "cancelled"
)

// SessionMachine owns the focus session lifecycle. At most one non-terminal
// session exists at any time; terminal sessions are immutable and handed back
// to the caller. Session.Status is the single source of truth for whether a
// session is running; nothing is inferred from the idle state.
type SessionMachine struct {
	mu sync.Mutex

	clock Clock
	emit  func(models.ActivityEvent)

	current     *models.FocusSession
	pausedAt    time.Time
	pauseReason models.PauseReason
}

// NewSessionMachine builds a session machine emitting focus events to emit.
func NewSessionMachine(clock Clock, emit func(models.ActivityEvent)) *SessionMachine {
	return &SessionMachine{clock: clock, emit: emit}
}

// Start creates a new active session. Fails with ErrSessionActive when a
// non-terminal session already exists.
func (sm *SessionMachine) Start(targetDurationSeconds int) (*models.FocusSession, error) {
	sm.mu.Lock()
	if sm.current != nil && !sm.current.Status.Terminal() {
		sm.mu.Unlock()
		return nil, ErrSessionActive
	}

	now := sm.clock.Now()
	sm.current = &models.FocusSession{
		ID:                    uuid.New().String(),
		StartTime:             now.UTC(),
		TargetDurationSeconds: targetDurationSeconds,
		Status:                models.SessionActive,
		Activities:            []string{},
	}
	snapshot := *sm.current

	ev := newEvent(models.EventFocusStart, now)
	ev.SessionID = snapshot.ID
	emit := sm.emit
	sm.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
	return &snapshot, nil
}

// Pause pauses the active session. A no-op unless the session is active.
// A distraction pause additionally increments the distraction count.
func (sm *SessionMachine) Pause(reason models.PauseReason) {
	sm.mu.Lock()
	if sm.current == nil || sm.current.Status != models.SessionActive {
		sm.mu.Unlock()
		return
	}

	now := sm.clock.Now()
	sm.current.Status = models.SessionPaused
	sm.pausedAt = now
	sm.pauseReason = reason
	if reason == models.PauseDistraction {
		sm.current.DistractionCount++
	}

	ev := newEvent(models.EventFocusPause, now)
	ev.SessionID = sm.current.ID
	emit := sm.emit
	sm.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
}

// Resume resumes a paused session. A no-op unless the session is paused.
func (sm *SessionMachine) Resume() {
	sm.resume(false)
}

// AutoResume resumes a session only if it was paused because the user went
// idle. A manually paused session stays paused.
func (sm *SessionMachine) AutoResume() {
	sm.resume(true)
}

func (sm *SessionMachine) resume(idleOnly bool) {
	sm.mu.Lock()
	if sm.current == nil || sm.current.Status != models.SessionPaused {
		sm.mu.Unlock()
		return
	}
	if idleOnly && sm.pauseReason != models.PauseIdle {
		sm.mu.Unlock()
		return
	}

	now := sm.clock.Now()
	sm.current.PausedDurationSeconds += now.Sub(sm.pausedAt).Seconds()
	sm.current.Status = models.SessionActive
	sm.pausedAt = time.Time{}
	sm.pauseReason = ""

	ev := newEvent(models.EventFocusResume, now)
	ev.SessionID = sm.current.ID
	emit := sm.emit
	sm.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
}

// End finishes the session, computes its score and returns the now-immutable
// session. Fails with ErrNoSession when no non-terminal session exists.
func (sm *SessionMachine) End(reason EndReason) (*models.FocusSession, error) {
	sm.mu.Lock()
	if sm.current == nil || sm.current.Status.Terminal() {
		sm.mu.Unlock()
		return nil, ErrNoSession
	}

	now := sm.clock.Now()

	// A trailing pause counts toward paused time.
	if sm.current.Status == models.SessionPaused {
		sm.current.PausedDurationSeconds += now.Sub(sm.pausedAt).Seconds()
		sm.pausedAt = time.Time{}
		sm.pauseReason = ""
	}

	end := now.UTC()
	sm.current.EndTime = &end
	sm.current.ActualDurationSeconds = now.Sub(sm.current.StartTime).Seconds() - sm.current.PausedDurationSeconds
	if sm.current.ActualDurationSeconds < 0 {
		sm.current.ActualDurationSeconds = 0
	}
	if reason == EndCompleted {
		sm.current.Status = models.SessionCompleted
	} else {
		sm.current.Status = models.SessionCancelled
	}
	sm.current.Score = completionScore(
		float64(sm.current.TargetDurationSeconds),
		sm.current.ActualDurationSeconds,
		sm.current.PausedDurationSeconds,
		sm.current.DistractionCount,
	)

	finished := sm.current
	sm.current = nil
	snapshot := *finished

	ev := newEvent(models.EventFocusEnd, now)
	ev.SessionID = snapshot.ID
	ev.Score = snapshot.Score
	emit := sm.emit
	sm.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
	return &snapshot, nil
}

// Current returns a copy of the in-flight session, or nil.
func (sm *SessionMachine) Current() *models.FocusSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return nil
	}
	snapshot := *sm.current
	return &snapshot
}

// RecordActivity appends an event ID to the in-flight session's activity
// list. A no-op when no session is running.
func (sm *SessionMachine) RecordActivity(eventID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil || sm.current.Status.Terminal() {
		return
	}
	sm.current.Activities = append(sm.current.Activities, eventID)
}

// completionScore grades a finished session on a 0-100 scale. Sessions
// shorter than 80% of their target, heavily paused sessions and sessions with
// many distractions all lose points.
func completionScore(target, actual, paused float64, distractions int) int {
	targetRatio := 1.0
	if target > 0 {
		targetRatio = actual / target
	}

	pauseRatio := 0.0
	if actual+paused > 0 {
		pauseRatio = paused / (actual + paused)
	}

	distractionPenalty := math.Min(float64(distractions*5), 30)

	score := 100.0
	if targetRatio < 0.8 {
		score -= (0.8 - targetRatio) * 50
	}
	score -= pauseRatio * 40
	score -= distractionPenalty

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
