package sync

import (
	"context"
	stdsync "sync"
	"time"
)

const snapshotFreshFor = 30 * time.Second

// snapshotCache memoizes a remote listing for a short window so bursts of
// local events do not each hit the server. Stale reads refetch; Invalidate
// forces the next read to refetch.
type snapshotCache[T any] struct {
	mu        stdsync.Mutex
	value     T
	fetchedAt time.Time
	fetch     func(ctx context.Context) (T, error)
}

func newSnapshotCache[T any](fetch func(ctx context.Context) (T, error)) *snapshotCache[T] {
	return &snapshotCache[T]{fetch: fetch}
}

// Get returns the cached value, refetching when stale or when force is set.
// On fetch failure a previously cached value is NOT returned; callers decide
// how to degrade.
func (c *snapshotCache[T]) Get(ctx context.Context, force bool) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < snapshotFreshFor {
		return c.value, nil
	}

	value, err := c.fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = value
	c.fetchedAt = time.Now()
	return value, nil
}

// Invalidate drops the cached value.
func (c *snapshotCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
