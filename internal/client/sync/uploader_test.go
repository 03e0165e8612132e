package sync

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transientErr classifies as a retryable network failure.
func transientErr() error {
	return &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}
}

func TestUploaderPushesSubmitted(t *testing.T) {
	var pushed atomic.Int32
	u := NewUploader(func(ctx context.Context, relPath string) error {
		pushed.Add(1)
		return nil
	}, NewEventBus(), &SyncStats{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	u.Submit("a.html")
	require.Eventually(t, func() bool { return pushed.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestUploaderDebouncesDrain(t *testing.T) {
	var pushed atomic.Int32
	u := NewUploader(func(ctx context.Context, relPath string) error {
		pushed.Add(1)
		return nil
	}, NewEventBus(), &SyncStats{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	u.Submit("a.html")

	// still inside the settle window
	time.Sleep(queueDebounce / 4)
	assert.Zero(t, pushed.Load())

	require.Eventually(t, func() bool { return pushed.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestUploaderDeduplicatesQueuedPaths(t *testing.T) {
	release := make(chan struct{})
	var pushed atomic.Int32
	u := NewUploader(func(ctx context.Context, relPath string) error {
		pushed.Add(1)
		<-release
		return nil
	}, NewEventBus(), &SyncStats{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	u.Submit("a.html")
	require.Eventually(t, func() bool { return pushed.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	// saved repeatedly while the first push is in flight
	u.Submit("a.html")
	u.Submit("a.html")
	u.Submit("a.html")
	assert.Equal(t, 1, u.Len())

	close(release)
	require.Eventually(t, func() bool { return pushed.Load() == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestUploaderDropsNonRetryable(t *testing.T) {
	bus := NewEventBus()
	stats := &SyncStats{}
	u := NewUploader(func(ctx context.Context, relPath string) error {
		return &ValidationError{Path: relPath, Reason: "bad name"}
	}, bus, stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	u.Submit("bad name.html")

	select {
	case event := <-bus.Events():
		assert.Equal(t, EventSyncError, event.Type)
		assert.Equal(t, "bad name.html", event.Path)
	case <-time.After(3 * time.Second):
		t.Fatal("expected sync-error event")
	}
	assert.Equal(t, int64(1), stats.Snapshot().Errors)
	assert.Zero(t, u.Len())
}

func TestUploaderSchedulesRetry(t *testing.T) {
	var attempts atomic.Int32
	u := NewUploader(func(ctx context.Context, relPath string) error {
		attempts.Add(1)
		return transientErr()
	}, NewEventBus(), &SyncStats{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx)

	u.Submit("a.html")
	require.Eventually(t, func() bool { return attempts.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	// the retry is parked on the backoff timer, not dropped
	assert.Eventually(t, func() bool { return u.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestUploaderUsesFullRetrySchedule(t *testing.T) {
	stats := &SyncStats{}
	u := NewUploader(func(ctx context.Context, relPath string) error {
		return transientErr()
	}, NewEventBus(), stats)

	// the third failure parks on the final backoff slot
	u.attempt(context.Background(), uploadTask{relPath: "a.html", attempt: 2})
	assert.Equal(t, 1, u.Len())
	assert.Zero(t, stats.Snapshot().Errors)

	// the fourth failure is permanent
	u.attempt(context.Background(), uploadTask{relPath: "b.html", attempt: 3})
	assert.Equal(t, 1, u.Len())
	assert.Equal(t, int64(1), stats.Snapshot().Errors)

	u.Clear()
}

func TestUploaderClear(t *testing.T) {
	u := NewUploader(func(ctx context.Context, relPath string) error { return nil }, NewEventBus(), &SyncStats{})

	u.Submit("a.html")
	u.Submit("b.html")
	assert.Equal(t, 2, u.Len())

	u.Clear()
	assert.Zero(t, u.Len())

	// paths are submittable again after a clear
	u.Submit("a.html")
	assert.Equal(t, 1, u.Len())
}
