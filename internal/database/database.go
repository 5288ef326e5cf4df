package database

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

type DB struct {
	*sql.DB
}

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	d := &DB{db}
	if err := d.migrate(); err != nil {
		return nil, err
	}

	slog.Info("database initialized", "path", path)
	return d, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		// Append-only activity event history
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			time DATETIME NOT NULL,
			app TEXT,
			window_title TEXT,
			browser TEXT,
			url TEXT,
			domain TEXT,
			tab_title TEXT,
			idle_seconds INTEGER,
			duration_seconds REAL,
			session_id TEXT,
			category TEXT,
			score INTEGER,
			totals JSONB,
			stats JSONB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_time ON events(time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,

		// Pending upload retries, ordered; rewritten in one transaction on
		// every queue mutation
		`CREATE TABLE IF NOT EXISTS upload_queue (
			position INTEGER NOT NULL,
			artifact_id TEXT NOT NULL,
			path TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			backoff_count INTEGER NOT NULL,
			next_retry DATETIME NOT NULL,
			enqueued_at DATETIME NOT NULL
		)`,

		// Terminal upload outcomes kept for the status query
		`CREATE TABLE IF NOT EXISTS upload_abandoned (
			artifact_id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			abandoned_at DATETIME NOT NULL
		)`,

		// Accumulated time snapshots so totals survive restarts
		`CREATE TABLE IF NOT EXISTS time_totals (
			axis TEXT NOT NULL,
			key TEXT NOT NULL,
			seconds REAL NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (axis, key)
		)`,

		// Daily productivity rollups
		`CREATE TABLE IF NOT EXISTS daily_rollups (
			day DATE PRIMARY KEY,
			productive_seconds REAL NOT NULL,
			neutral_seconds REAL NOT NULL,
			unproductive_seconds REAL NOT NULL,
			blocked_seconds REAL NOT NULL,
			total_seconds REAL NOT NULL,
			score INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// --- Events ---

func (db *DB) InsertEvent(ev models.ActivityEvent) error {
	var totals, stats []byte
	if ev.Totals != nil {
		totals, _ = json.Marshal(ev.Totals)
	}
	if ev.Stats != nil {
		stats, _ = json.Marshal(ev.Stats)
	}

	_, err := db.Exec(`INSERT INTO events
		(id, type, time, app, window_title, browser, url, domain, tab_title,
		 idle_seconds, duration_seconds, session_id, category, score, totals, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.Time, ev.App, ev.WindowTitle, ev.Browser,
		ev.URL, ev.Domain, ev.TabTitle, ev.IdleSeconds, ev.DurationSeconds,
		ev.SessionID, string(ev.Category), ev.Score, totals, stats)
	return err
}

func (db *DB) RecentEvents(limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(`SELECT id, type, time, app, window_title, browser,
		url, domain, tab_title, idle_seconds, duration_seconds, session_id,
		category, score, totals, stats
		FROM events ORDER BY time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ActivityEvent
	for rows.Next() {
		var ev models.ActivityEvent
		var typ, category string
		var totals, stats []byte
		if err := rows.Scan(&ev.ID, &typ, &ev.Time, &ev.App, &ev.WindowTitle,
			&ev.Browser, &ev.URL, &ev.Domain, &ev.TabTitle, &ev.IdleSeconds,
			&ev.DurationSeconds, &ev.SessionID, &category, &ev.Score,
			&totals, &stats); err != nil {
			return nil, err
		}
		ev.Type = models.EventType(typ)
		ev.Category = models.Category(category)
		if len(totals) > 0 {
			_ = json.Unmarshal(totals, &ev.Totals)
		}
		if len(stats) > 0 {
			_ = json.Unmarshal(stats, &ev.Stats)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (db *DB) PruneEventsBefore(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM events WHERE time < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Upload queue ---

// ReplaceQueue rewrites the full pending queue in one transaction, preserving
// item order. A crash mid-write loses at most the in-flight rewrite.
func (db *DB) ReplaceQueue(items []models.UploadQueueItem) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM upload_queue`); err != nil {
		return err
	}
	for i, item := range items {
		if _, err := tx.Exec(`INSERT INTO upload_queue
			(position, artifact_id, path, retry_count, backoff_count, next_retry, enqueued_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, item.ArtifactID, item.Path, item.RetryCount, item.BackoffCount,
			item.NextRetry, item.EnqueuedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) LoadQueue() ([]models.UploadQueueItem, error) {
	rows, err := db.Query(`SELECT artifact_id, path, retry_count, backoff_count,
		next_retry, enqueued_at FROM upload_queue ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.UploadQueueItem
	for rows.Next() {
		var item models.UploadQueueItem
		if err := rows.Scan(&item.ArtifactID, &item.Path, &item.RetryCount,
			&item.BackoffCount, &item.NextRetry, &item.EnqueuedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (db *DB) InsertAbandoned(item models.UploadQueueItem, when time.Time) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO upload_abandoned
		(artifact_id, path, retry_count, abandoned_at) VALUES (?, ?, ?, ?)`,
		item.ArtifactID, item.Path, item.RetryCount, when)
	return err
}

func (db *DB) CountAbandoned() (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM upload_abandoned`).Scan(&count)
	return count, err
}

// --- Accumulated time snapshots ---

func (db *DB) SaveTimeTotals(axis string, totals map[string]float64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM time_totals WHERE axis = ?`, axis); err != nil {
		return err
	}
	for key, seconds := range totals {
		if _, err := tx.Exec(`INSERT INTO time_totals (axis, key, seconds, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)`, axis, key, seconds); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) LoadTimeTotals(axis string) (map[string]float64, error) {
	rows, err := db.Query(`SELECT key, seconds FROM time_totals WHERE axis = ?`, axis)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var key string
		var seconds float64
		if err := rows.Scan(&key, &seconds); err != nil {
			return nil, err
		}
		totals[key] = seconds
	}
	return totals, rows.Err()
}

// --- Daily rollups ---

func (db *DB) UpsertDailyRollup(r models.DailyRollup) error {
	_, err := db.Exec(`INSERT INTO daily_rollups
		(day, productive_seconds, neutral_seconds, unproductive_seconds,
		 blocked_seconds, total_seconds, score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			productive_seconds = excluded.productive_seconds,
			neutral_seconds = excluded.neutral_seconds,
			unproductive_seconds = excluded.unproductive_seconds,
			blocked_seconds = excluded.blocked_seconds,
			total_seconds = excluded.total_seconds,
			score = excluded.score`,
		r.Day.Format("2006-01-02"), r.ProductiveSeconds, r.NeutralSeconds,
		r.UnproductiveSeconds, r.BlockedSeconds, r.TotalSeconds, r.Score)
	return err
}

func (db *DB) GetDailyRollups(limit int) ([]models.DailyRollup, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := db.Query(`SELECT day, productive_seconds, neutral_seconds,
		unproductive_seconds, blocked_seconds, total_seconds, score, created_at
		FROM daily_rollups ORDER BY day DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rollups []models.DailyRollup
	for rows.Next() {
		var r models.DailyRollup
		var day string
		if err := rows.Scan(&day, &r.ProductiveSeconds, &r.NeutralSeconds,
			&r.UnproductiveSeconds, &r.BlockedSeconds, &r.TotalSeconds,
			&r.Score, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Day, _ = time.Parse("2006-01-02", day)
		rollups = append(rollups, r)
	}
	return rollups, rows.Err()
}
