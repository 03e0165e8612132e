package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/littleweb/sitebox/internal/queue"
)

// retryDelays is the backoff schedule. After the last delay the task is
// dropped and surfaced as a sync error.
var retryDelays = []time.Duration{2 * time.Second, 10 * time.Second, 30 * time.Second}

// queueDebounce is the settle window between a wake and the drain, so a
// burst of saves collapses into one pass.
const queueDebounce = 500 * time.Millisecond

type uploadTask struct {
	relPath string
	attempt int
}

// pushFunc performs the actual server upload for one path.
type pushFunc func(ctx context.Context, relPath string) error

// Uploader is the bounded retry pipeline for local changes. Paths are
// deduplicated while queued; a path saved five times during a retry wait
// still uploads once, with whatever content is on disk at drain time.
type Uploader struct {
	queue  *queue.PriorityQueue[uploadTask]
	queued mapset.Set[string]
	push   pushFunc
	bus    *EventBus
	stats  *SyncStats

	wake chan struct{}

	mu      stdsync.Mutex
	waiting map[string]*time.Timer
}

func NewUploader(push pushFunc, bus *EventBus, stats *SyncStats) *Uploader {
	return &Uploader{
		queue:   queue.NewPriorityQueue[uploadTask](),
		queued:  mapset.NewSet[string](),
		push:    push,
		bus:     bus,
		stats:   stats,
		wake:    make(chan struct{}, 1),
		waiting: make(map[string]*time.Timer),
	}
}

// Submit queues relPath for upload. Already-queued paths are absorbed.
func (u *Uploader) Submit(relPath string) {
	if !u.queued.Add(relPath) {
		return
	}
	u.queue.Enqueue(uploadTask{relPath: relPath}, 0)
	u.signal()
}

// Clear drops everything queued. Used when the engine stops.
func (u *Uploader) Clear() {
	u.queue.Clear()
	u.queued.Clear()

	u.mu.Lock()
	defer u.mu.Unlock()
	for _, timer := range u.waiting {
		timer.Stop()
	}
	clear(u.waiting)
}

// Len reports queued plus retry-waiting paths.
func (u *Uploader) Len() int {
	u.mu.Lock()
	waiting := len(u.waiting)
	u.mu.Unlock()
	return u.queue.Len() + waiting
}

func (u *Uploader) signal() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is canceled. Single goroutine; uploads for
// different paths are serialized through here, which keeps ordering simple
// and the server load bounded.
func (u *Uploader) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.wake:
		}

		settle := time.NewTimer(queueDebounce)
		select {
		case <-ctx.Done():
			settle.Stop()
			return
		case <-settle.C:
		}

		for {
			task, ok := u.queue.Dequeue()
			if !ok {
				break
			}
			u.queued.Remove(task.relPath)
			u.attempt(ctx, task)

			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (u *Uploader) attempt(ctx context.Context, task uploadTask) {
	err := u.push(ctx, task.relPath)
	if err == nil {
		u.stats.Uploads.Add(1)
		u.bus.Publish(EventFileUploaded, task.relPath, nil)
		return
	}

	kind := ClassifyError(err)
	if !kind.Retryable() || task.attempt >= len(retryDelays) {
		slog.Error("upload failed", "path", task.relPath, "kind", kind.String(), "attempt", task.attempt+1, "error", err)
		u.stats.Errors.Add(1)
		u.bus.Publish(EventSyncError, task.relPath, err)
		return
	}

	delay := retryDelays[task.attempt]
	slog.Warn("upload failed, will retry", "path", task.relPath, "kind", kind.String(), "attempt", task.attempt+1, "retryIn", delay)
	u.scheduleRetry(ctx, task, delay)
}

// scheduleRetry re-enqueues after the backoff delay. A fresh Submit for the
// same path during the wait wins; the retry then finds the path already
// queued and yields to it.
func (u *Uploader) scheduleRetry(ctx context.Context, task uploadTask, delay time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.waiting[task.relPath]; exists {
		return
	}
	u.waiting[task.relPath] = time.AfterFunc(delay, func() {
		u.mu.Lock()
		delete(u.waiting, task.relPath)
		u.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if !u.queued.Add(task.relPath) {
			return
		}
		u.queue.Enqueue(uploadTask{relPath: task.relPath, attempt: task.attempt + 1}, task.attempt+1)
		u.signal()
	})
}
