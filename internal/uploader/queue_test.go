package uploader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// fakeUploader fails or succeeds on demand.
type fakeUploader struct {
	mu       sync.Mutex
	err      error
	attempts int
}

func (f *fakeUploader) Upload(ctx context.Context, path string) (*UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return nil, f.err
	}
	return &UploadResult{ID: "remote-1", Size: 128}, nil
}

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	queue     []models.UploadQueueItem
	abandoned []models.UploadQueueItem
}

func (s *memStore) ReplaceQueue(items []models.UploadQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]models.UploadQueueItem(nil), items...)
	return nil
}

func (s *memStore) LoadQueue() ([]models.UploadQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.UploadQueueItem(nil), s.queue...), nil
}

func (s *memStore) InsertAbandoned(item models.UploadQueueItem, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = append(s.abandoned, item)
	return nil
}

func (s *memStore) CountAbandoned() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.abandoned), nil
}

func testOptions() Options {
	return Options{
		InitialDelay:  time.Second,
		MaxDelay:      60 * time.Second,
		MaxRetries:    7,
		DrainInterval: 10 * time.Second,
	}
}

func newTestQueue(t *testing.T, client artifactUploader, store Store) *Queue {
	t.Helper()
	q, err := NewQueue(client, store, testOptions())
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	q.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return q
}

func TestBackoffDelayDoublesWithCap(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second, // capped, not 64s
		60 * time.Second,
	}
	for n, expected := range want {
		if got := backoffDelay(time.Second, 60*time.Second, n); got != expected {
			t.Errorf("backoffDelay(n=%d) = %v, want %v", n, got, expected)
		}
	}
}

func TestAttemptFailureSchedulesRetry(t *testing.T) {
	client := &fakeUploader{err: errors.New("connection refused")}
	store := &memStore{}
	q := newTestQueue(t, client, store)

	item := models.UploadQueueItem{ArtifactID: "a1", Path: "/tmp/a1.json", EnqueuedAt: q.now()}
	q.attempt(context.Background(), item)

	status := q.Status()
	if status.QueueSize != 1 {
		t.Fatalf("queue size = %d, want 1", status.QueueSize)
	}
	got := status.Items[0]
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	if want := q.now().Add(time.Second); !got.NextRetry.Equal(want) {
		t.Errorf("next retry = %v, want %v", got.NextRetry, want)
	}

	// Failures grow the backoff exponentially.
	q.mu.Lock()
	item = q.items[0]
	q.items = nil
	q.mu.Unlock()
	q.attempt(context.Background(), item)

	got = q.Status().Items[0]
	if got.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", got.RetryCount)
	}
	if want := q.now().Add(2 * time.Second); !got.NextRetry.Equal(want) {
		t.Errorf("next retry after second failure = %v, want %v", got.NextRetry, want)
	}

	// Persisted on every mutation.
	if len(store.queue) != 1 {
		t.Errorf("persisted queue size = %d, want 1", len(store.queue))
	}
}

// A rate-limit response with a hint schedules exactly at the hint and does not
// advance the exponential backoff: the next plain failure still gets the
// initial delay.
func TestAttemptRateLimitHonorsHint(t *testing.T) {
	client := &fakeUploader{err: &RateLimitError{RetryAfter: 30 * time.Second}}
	store := &memStore{}
	q := newTestQueue(t, client, store)

	item := models.UploadQueueItem{ArtifactID: "a1", Path: "/tmp/a1.json", EnqueuedAt: q.now()}
	q.attempt(context.Background(), item)

	got := q.Status().Items[0]
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	if want := q.now().Add(30 * time.Second); !got.NextRetry.Equal(want) {
		t.Errorf("next retry = %v, want %v", got.NextRetry, want)
	}

	q.mu.Lock()
	item = q.items[0]
	q.items = nil
	q.mu.Unlock()

	client.mu.Lock()
	client.err = errors.New("connection refused")
	client.mu.Unlock()
	q.attempt(context.Background(), item)

	got = q.Status().Items[0]
	if want := q.now().Add(time.Second); !got.NextRetry.Equal(want) {
		t.Errorf("backoff grew during rate limiting: next retry = %v, want %v", got.NextRetry, want)
	}
}

func TestAttemptAbandonsAfterMaxRetries(t *testing.T) {
	client := &fakeUploader{err: errors.New("server exploded")}
	store := &memStore{}
	q := newTestQueue(t, client, store)

	item := models.UploadQueueItem{
		ArtifactID: "a1",
		Path:       "/tmp/a1.json",
		RetryCount: 7,
		EnqueuedAt: q.now(),
	}
	q.attempt(context.Background(), item)

	status := q.Status()
	if status.QueueSize != 0 {
		t.Errorf("queue size = %d, want 0", status.QueueSize)
	}
	if status.Abandoned != 1 {
		t.Errorf("abandoned = %d, want 1", status.Abandoned)
	}
	if len(store.abandoned) != 1 || store.abandoned[0].ArtifactID != "a1" {
		t.Errorf("abandoned store = %+v", store.abandoned)
	}
}

func TestDrainAttemptsOnlyDueItems(t *testing.T) {
	client := &fakeUploader{}
	store := &memStore{}
	q := newTestQueue(t, client, store)

	now := q.now()
	q.mu.Lock()
	q.items = []models.UploadQueueItem{
		{ArtifactID: "due", Path: "/tmp/due.json", NextRetry: now.Add(-time.Second)},
		{ArtifactID: "future", Path: "/tmp/future.json", NextRetry: now.Add(time.Hour)},
	}
	q.mu.Unlock()

	q.drain()
	q.inflight.Wait()

	if client.attempts != 1 {
		t.Errorf("attempts = %d, want 1", client.attempts)
	}
	status := q.Status()
	if status.QueueSize != 1 || status.Items[0].ArtifactID != "future" {
		t.Errorf("queue after drain = %+v", status.Items)
	}
}

func TestNewQueueReloadsPersistedItems(t *testing.T) {
	store := &memStore{
		queue: []models.UploadQueueItem{
			{ArtifactID: "a1", Path: "/tmp/a1.json", RetryCount: 3},
		},
	}
	q := newTestQueue(t, &fakeUploader{}, store)

	status := q.Status()
	if status.QueueSize != 1 {
		t.Fatalf("queue size = %d, want 1", status.QueueSize)
	}
	if status.Items[0].ArtifactID != "a1" || status.Items[0].RetryCount != 3 {
		t.Errorf("reloaded item = %+v", status.Items[0])
	}
}

func TestCancelRemovesPendingItem(t *testing.T) {
	store := &memStore{
		queue: []models.UploadQueueItem{
			{ArtifactID: "a1", Path: "/tmp/a1.json"},
			{ArtifactID: "a2", Path: "/tmp/a2.json"},
		},
	}
	q := newTestQueue(t, &fakeUploader{}, store)

	if !q.Cancel("a1") {
		t.Fatal("Cancel(a1) = false, want true")
	}
	if q.Cancel("a1") {
		t.Error("second Cancel(a1) = true, want false")
	}
	if q.Cancel("missing") {
		t.Error("Cancel(missing) = true, want false")
	}

	status := q.Status()
	if status.QueueSize != 1 || status.Items[0].ArtifactID != "a2" {
		t.Errorf("queue after cancel = %+v", status.Items)
	}
	if len(store.queue) != 1 {
		t.Errorf("persisted queue size = %d, want 1", len(store.queue))
	}
}

func TestAttemptSuccessLeavesQueueEmpty(t *testing.T) {
	client := &fakeUploader{}
	store := &memStore{}
	q := newTestQueue(t, client, store)

	q.attempt(context.Background(), models.UploadQueueItem{
		ArtifactID: "a1",
		Path:       "/tmp/a1.json",
		EnqueuedAt: q.now(),
	})

	if status := q.Status(); status.QueueSize != 0 || status.Abandoned != 0 {
		t.Errorf("status after success = %+v", status)
	}
}
