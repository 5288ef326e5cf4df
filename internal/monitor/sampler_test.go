package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// samplerHarness drives a Sampler by hand: the observation it returns and the
// clock are both under test control.
type samplerHarness struct {
	clock   *fakeClock
	sampler *Sampler
	events  []models.ActivityEvent
	credits []struct {
		key     string
		seconds float64
	}

	key string
	err error
}

func newSamplerHarness() *samplerHarness {
	h := &samplerHarness{clock: newFakeClock()}
	sample := func() (Sample, error) {
		if h.err != nil {
			return Sample{}, h.err
		}
		return Sample{
			ChangeKey: h.key,
			CreditKey: h.key,
			Event:     models.ActivityEvent{App: h.key},
		}, nil
	}
	h.sampler = NewSampler(models.EventWindow, h.clock, stubScheduler{}, sample,
		func(ev models.ActivityEvent) { h.events = append(h.events, ev) },
		func(prev Sample, seconds float64) {
			h.credits = append(h.credits, struct {
				key     string
				seconds float64
			}{prev.CreditKey, seconds})
		})
	h.sampler.Start(10 * time.Second)
	return h
}

// Duration crediting lags one tick: the elapsed interval belongs to the key
// observed at its start.
func TestSamplerCreditsLagOneTick(t *testing.T) {
	h := newSamplerHarness()

	h.key = "appA"
	h.sampler.tick() // t=0
	h.clock.advance(10 * time.Second)
	h.sampler.tick() // t=10
	h.clock.advance(10 * time.Second)
	h.key = "appB"
	h.sampler.tick() // t=20

	state := h.sampler.State()
	if got := state.Accumulated["appA"]; got != 20 {
		t.Errorf("accumulated[appA] = %v, want 20", got)
	}
	if got := state.Accumulated["appB"]; got != 0 {
		t.Errorf("accumulated[appB] = %v, want 0", got)
	}
}

func TestSamplerEmitsOnKeyChangeOnly(t *testing.T) {
	h := newSamplerHarness()

	h.key = "appA"
	h.sampler.tick()
	h.clock.advance(10 * time.Second)
	h.sampler.tick() // same key, no event
	h.clock.advance(10 * time.Second)
	h.key = "appB"
	h.sampler.tick()

	if len(h.events) != 2 {
		t.Fatalf("expected 2 change events, got %d", len(h.events))
	}
	if h.events[0].App != "appA" || h.events[1].App != "appB" {
		t.Errorf("unexpected event apps: %q, %q", h.events[0].App, h.events[1].App)
	}
	if h.events[1].Totals["appA"] != 20 {
		t.Errorf("change event totals snapshot = %v, want appA=20", h.events[1].Totals)
	}
	for _, ev := range h.events {
		if ev.ID == "" {
			t.Error("change event missing id")
		}
		if ev.Type != models.EventWindow {
			t.Errorf("change event type = %q, want %q", ev.Type, models.EventWindow)
		}
	}
}

// A failed probe query skips the tick entirely; the next successful tick
// credits the whole elapsed interval to the previous key.
func TestSamplerSkipsFailedTicks(t *testing.T) {
	h := newSamplerHarness()

	h.key = "appA"
	h.sampler.tick() // t=0
	h.clock.advance(10 * time.Second)
	h.err = errors.New("probe denied")
	h.sampler.tick() // t=10, skipped
	h.clock.advance(10 * time.Second)
	h.err = nil
	h.sampler.tick() // t=20

	if got := h.sampler.State().Accumulated["appA"]; got != 20 {
		t.Errorf("accumulated[appA] = %v, want 20", got)
	}
	if len(h.events) != 1 {
		t.Errorf("expected 1 event, got %d", len(h.events))
	}
}

func TestSamplerStopPerformsFinalCredit(t *testing.T) {
	h := newSamplerHarness()

	h.key = "appA"
	h.sampler.tick()
	h.clock.advance(7 * time.Second)
	h.sampler.Stop()

	state := h.sampler.State()
	if state.Tracking {
		t.Error("sampler still tracking after Stop")
	}
	if got := state.Accumulated["appA"]; got != 7 {
		t.Errorf("accumulated[appA] = %v, want 7", got)
	}

	// Stop again is a no-op.
	h.sampler.Stop()
	if got := h.sampler.State().Accumulated["appA"]; got != 7 {
		t.Errorf("accumulated[appA] after second Stop = %v, want 7", got)
	}
}

func TestSamplerResetClearsTotalsButKeepsTracking(t *testing.T) {
	h := newSamplerHarness()

	h.key = "appA"
	h.sampler.tick()
	h.clock.advance(10 * time.Second)
	h.sampler.tick()
	h.sampler.Reset()

	state := h.sampler.State()
	if !state.Tracking {
		t.Error("Reset stopped the sampler")
	}
	if len(state.Accumulated) != 0 {
		t.Errorf("accumulated not cleared: %v", state.Accumulated)
	}

	// The observation after a reset is treated as new: an event fires and no
	// time is credited for the pre-reset interval.
	h.clock.advance(10 * time.Second)
	h.sampler.tick()
	if got := h.sampler.State().Accumulated["appA"]; got != 0 {
		t.Errorf("accumulated[appA] after reset tick = %v, want 0", got)
	}
	if len(h.events) != 2 {
		t.Errorf("expected 2 events (initial + post-reset), got %d", len(h.events))
	}
}

func TestSamplerOnCreditObservesSlices(t *testing.T) {
	h := newSamplerHarness()

	h.key = "appA"
	h.sampler.tick()
	h.clock.advance(10 * time.Second)
	h.sampler.tick()

	if len(h.credits) != 1 {
		t.Fatalf("expected 1 credit, got %d", len(h.credits))
	}
	if h.credits[0].key != "appA" || h.credits[0].seconds != 10 {
		t.Errorf("credit = %+v, want appA/10", h.credits[0])
	}
}

// Start(0) must not reach time.NewTicker, which panics on non-positive
// intervals; it falls back to the default instead.
func TestSamplerStartClampsNonPositiveInterval(t *testing.T) {
	s := NewSampler(models.EventWindow, SystemClock(), NewScheduler(),
		func() (Sample, error) { return Sample{}, errProbe },
		func(models.ActivityEvent) {}, nil)
	defer s.Stop()

	s.Start(0)
	if !s.State().Tracking {
		t.Error("sampler not tracking after Start(0)")
	}
}

func TestSamplerRestoreSeedsTotals(t *testing.T) {
	h := newSamplerHarness()
	h.sampler.Restore(map[string]float64{"appZ": 42})

	if got := h.sampler.State().Accumulated["appZ"]; got != 42 {
		t.Errorf("restored accumulated[appZ] = %v, want 42", got)
	}
}
