package monitor

import (
	"sync"
	"time"
)

// Clock supplies the current time. Components read time only through a Clock
// so tests can advance it without waiting.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock {
	return systemClock{}
}

// Scheduler runs a function on a recurring interval. Every returns a stop
// function that halts the job; stop blocks until the job will no longer fire
// and is safe to call more than once.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

type tickerScheduler struct{}

// NewScheduler returns the production Scheduler backed by time.Ticker.
func NewScheduler() Scheduler {
	return tickerScheduler{}
}

func (tickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			<-stopped
		})
	}
}
