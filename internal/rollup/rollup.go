// Package rollup writes daily productivity aggregates and prunes old event
// history on a cron schedule.
package rollup

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/charlie0129/activity-monitor-go/internal/database"
	"github.com/charlie0129/activity-monitor-go/internal/models"
)

type Roller struct {
	db        *database.DB
	stats     func() models.ProductivityStats
	retention time.Duration
	loc       *time.Location
	cron      *cron.Cron
}

// New builds a roller. stats supplies the current running productivity stats.
func New(db *database.DB, stats func() models.ProductivityStats, retention time.Duration, loc *time.Location) *Roller {
	return &Roller{
		db:        db,
		stats:     stats,
		retention: retention,
		loc:       loc,
	}
}

// StartScheduler schedules RunOnce on the given cron expression, falling back
// to a 24h ticker if the expression is invalid.
func (r *Roller) StartScheduler(schedule string) {
	r.cron = cron.New(cron.WithLocation(r.loc))

	_, err := r.cron.AddFunc(schedule, func() {
		slog.Info("running scheduled rollup", "schedule", schedule)
		r.RunOnce()
	})
	if err != nil {
		slog.Error("failed to add cron job, falling back to 24h ticker", "schedule", schedule, "error", err)
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				r.RunOnce()
			}
		}()
		return
	}

	slog.Info("scheduled daily rollup", "schedule", schedule, "timezone", r.loc.String())
	r.cron.Start()
}

func (r *Roller) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// RunOnce snapshots the running stats into today's rollup row and prunes
// events older than the retention window.
func (r *Roller) RunOnce() {
	now := time.Now().In(r.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)

	stats := r.stats()
	if err := r.db.UpsertDailyRollup(models.DailyRollup{
		Day:                 day,
		ProductiveSeconds:   stats.ProductiveSeconds,
		NeutralSeconds:      stats.NeutralSeconds,
		UnproductiveSeconds: stats.UnproductiveSeconds,
		BlockedSeconds:      stats.BlockedSeconds,
		TotalSeconds:        stats.TotalSeconds,
		Score:               stats.Score,
	}); err != nil {
		slog.Error("failed to write daily rollup", "day", day.Format("2006-01-02"), "error", err)
		return
	}

	cutoff := now.Add(-r.retention)
	pruned, err := r.db.PruneEventsBefore(cutoff)
	if err != nil {
		slog.Error("failed to prune event history", "error", err)
		return
	}

	slog.Info("rollup completed",
		"day", day.Format("2006-01-02"),
		"total_seconds", stats.TotalSeconds,
		"pruned_events", pruned)
}
