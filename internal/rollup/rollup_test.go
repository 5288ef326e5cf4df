package rollup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/database"
	"github.com/charlie0129/activity-monitor-go/internal/models"
)

func TestRunOnceWritesRollupAndPrunes(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "monitor.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close()

	// An event well past the retention window, and a fresh one.
	old := models.ActivityEvent{ID: "old", Type: models.EventWindow, Time: time.Now().UTC().AddDate(0, 0, -100)}
	fresh := models.ActivityEvent{ID: "fresh", Type: models.EventWindow, Time: time.Now().UTC()}
	for _, ev := range []models.ActivityEvent{old, fresh} {
		if err := db.InsertEvent(ev); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}

	stats := models.ProductivityStats{
		ProductiveSeconds: 3600,
		NeutralSeconds:    1800,
		TotalSeconds:      5400,
		Score:             83,
	}
	r := New(db, func() models.ProductivityStats { return stats }, 90*24*time.Hour, time.UTC)
	r.RunOnce()

	rollups, err := db.GetDailyRollups(10)
	if err != nil {
		t.Fatalf("GetDailyRollups: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("got %d rollups, want 1", len(rollups))
	}
	if rollups[0].TotalSeconds != 5400 || rollups[0].Score != 83 {
		t.Errorf("rollup = %+v", rollups[0])
	}

	events, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "fresh" {
		t.Errorf("events after prune = %+v", events)
	}

	// Running again the same day overwrites, never duplicates.
	stats.TotalSeconds = 6000
	r.RunOnce()
	rollups, err = db.GetDailyRollups(10)
	if err != nil {
		t.Fatalf("GetDailyRollups: %v", err)
	}
	if len(rollups) != 1 || rollups[0].TotalSeconds != 6000 {
		t.Errorf("rollups after rerun = %+v", rollups)
	}
}
