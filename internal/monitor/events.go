package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// EventSink receives every event the core emits. The host process supplies
// the concrete sink (in-process callback, SSE hub, queue). Publish must not
// block for long; slow consumers should buffer or drop on their side.
type EventSink interface {
	Publish(ev models.ActivityEvent)
}

// SinkFunc adapts a function to an EventSink.
type SinkFunc func(ev models.ActivityEvent)

func (f SinkFunc) Publish(ev models.ActivityEvent) {
	f(ev)
}

// NopSink discards all events.
func NopSink() EventSink {
	return SinkFunc(func(models.ActivityEvent) {})
}

func newEvent(typ models.EventType, now time.Time) models.ActivityEvent {
	return models.ActivityEvent{
		ID:   uuid.New().String(),
		Type: typ,
		Time: now.UTC(),
	}
}
