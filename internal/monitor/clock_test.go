package monitor

import (
	"errors"
	"sync"
	"time"
)

var errProbe = errors.New("probe failed")

// fakeClock is a manually advanced Clock so tests never wait on wall time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubScheduler never fires; tests drive component ticks directly.
type stubScheduler struct{}

func (stubScheduler) Every(time.Duration, func()) func() {
	return func() {}
}
