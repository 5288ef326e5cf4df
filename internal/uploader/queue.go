package uploader

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// Artifact uploader behind the queue; satisfied by *Client and by test fakes.
type artifactUploader interface {
	Upload(ctx context.Context, path string) (*UploadResult, error)
}

// Store persists the pending queue and terminal outcomes. *database.DB
// satisfies it.
type Store interface {
	ReplaceQueue(items []models.UploadQueueItem) error
	LoadQueue() ([]models.UploadQueueItem, error)
	InsertAbandoned(item models.UploadQueueItem, when time.Time) error
	CountAbandoned() (int, error)
}

// Options tunes queue behavior.
type Options struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	MaxRetries        int
	DrainInterval     time.Duration
	DeleteAfterUpload bool
}

// Queue retries failed artifact uploads with exponential backoff. Pending
// items are persisted on every mutation so retries survive a restart. An
// item is removed from the queue while its attempt is in flight, so no two
// simultaneous attempts exist for the same artifact.
type Queue struct {
	mu sync.Mutex

	client artifactUploader
	store  Store
	opts   Options
	now    func() time.Time

	items    []models.UploadQueueItem
	inflight sync.WaitGroup

	drainDone    chan struct{}
	drainStopped chan struct{}
	running      bool
}

// NewQueue builds a queue over the given client and store, reloading any
// retries persisted by a previous run.
func NewQueue(client artifactUploader, store Store, opts Options) (*Queue, error) {
	items, err := store.LoadQueue()
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		slog.Info("reloaded pending uploads", "count", len(items))
	}

	return &Queue{
		client: client,
		store:  store,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		items:  items,
	}, nil
}

// Start launches the periodic drain. Safe to call once.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.drainDone = make(chan struct{})
	q.drainStopped = make(chan struct{})
	done, stopped := q.drainDone, q.drainStopped
	q.mu.Unlock()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(q.opts.DrainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				q.drain()
			}
		}
	}()
}

// Stop halts the drain timer and waits for in-flight uploads to finish; they
// are never interrupted, their outcome is reconciled against queue state.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.drainDone)
	stopped := q.drainStopped
	q.mu.Unlock()

	<-stopped
	q.inflight.Wait()
}

// SetDeleteAfterUpload updates the delete-after-upload policy.
func (q *Queue) SetDeleteAfterUpload(del bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.opts.DeleteAfterUpload = del
}

// Submit attempts an immediate upload of the artifact at path, in the
// background so sampler ticks are never blocked. Returns the assigned
// artifact ID.
func (q *Queue) Submit(ctx context.Context, path string) string {
	item := models.UploadQueueItem{
		ArtifactID: uuid.New().String(),
		Path:       path,
		EnqueuedAt: q.now(),
	}

	q.inflight.Add(1)
	go func() {
		defer q.inflight.Done()
		q.attempt(ctx, item)
	}()
	return item.ArtifactID
}

// Cancel removes a pending item from the queue. Returns false when no such
// item is pending.
func (q *Queue) Cancel(artifactID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ArtifactID == artifactID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.persistLocked()
			slog.Info("upload cancelled", "artifact_id", artifactID)
			return true
		}
	}
	return false
}

// Status reports the pending queue plus the abandoned total.
func (q *Queue) Status() models.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := models.QueueStatus{
		QueueSize: len(q.items),
		Items:     make([]models.QueueStatusItem, 0, len(q.items)),
	}
	for _, item := range q.items {
		status.Items = append(status.Items, models.QueueStatusItem{
			ArtifactID: item.ArtifactID,
			RetryCount: item.RetryCount,
			NextRetry:  item.NextRetry,
		})
	}
	if count, err := q.store.CountAbandoned(); err == nil {
		status.Abandoned = count
	}
	return status
}

// drain re-attempts every due item. Due items are removed from the queue
// before the attempt so a slow upload cannot race a second attempt.
func (q *Queue) drain() {
	now := q.now()

	q.mu.Lock()
	var due []models.UploadQueueItem
	var remaining []models.UploadQueueItem
	for _, item := range q.items {
		if !item.NextRetry.After(now) {
			due = append(due, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	if len(due) > 0 {
		q.items = remaining
		q.persistLocked()
	}
	q.mu.Unlock()

	for _, item := range due {
		item := item
		q.inflight.Add(1)
		go func() {
			defer q.inflight.Done()
			q.attempt(context.Background(), item)
		}()
	}
}

// attempt performs one upload and reconciles the outcome: success removes the
// item for good, failure reschedules or abandons it.
func (q *Queue) attempt(ctx context.Context, item models.UploadQueueItem) {
	result, err := q.client.Upload(ctx, item.Path)
	if err == nil {
		slog.Info("artifact uploaded",
			"artifact_id", item.ArtifactID,
			"remote_id", result.ID,
			"size", result.Size,
			"retries", item.RetryCount)
		q.mu.Lock()
		del := q.opts.DeleteAfterUpload
		q.mu.Unlock()
		if del {
			if err := os.Remove(item.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Error("failed to delete uploaded artifact", "path", item.Path, "error", err)
			}
		}
		return
	}

	now := q.now()
	if item.RetryCount >= q.opts.MaxRetries {
		slog.Error("upload abandoned after retry exhaustion",
			"artifact_id", item.ArtifactID,
			"path", item.Path,
			"retries", item.RetryCount,
			"error", err)
		if dbErr := q.store.InsertAbandoned(item, now); dbErr != nil {
			slog.Error("failed to record abandoned upload", "error", dbErr)
		}
		return
	}

	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0 {
		// Honor the server's hint. Counts toward retryCount but not toward
		// backoff growth.
		item.RetryCount++
		item.NextRetry = now.Add(rateLimited.RetryAfter)
		slog.Info("upload rate limited",
			"artifact_id", item.ArtifactID,
			"retry_after", rateLimited.RetryAfter,
			"retries", item.RetryCount)
	} else {
		delay := backoffDelay(q.opts.InitialDelay, q.opts.MaxDelay, item.BackoffCount)
		item.RetryCount++
		item.BackoffCount++
		item.NextRetry = now.Add(delay)
		slog.Info("upload failed, scheduling retry",
			"artifact_id", item.ArtifactID,
			"delay", delay,
			"retries", item.RetryCount,
			"error", err)
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	q.persistLocked()
	q.mu.Unlock()
}

// persistLocked rewrites the persisted queue. Callers must hold q.mu.
func (q *Queue) persistLocked() {
	if err := q.store.ReplaceQueue(q.items); err != nil {
		slog.Error("failed to persist upload queue", "error", err)
	}
}

// backoffDelay computes min(initial * 2^n, max).
func backoffDelay(initial, max time.Duration, n int) time.Duration {
	delay := initial
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
