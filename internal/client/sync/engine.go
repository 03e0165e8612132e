package sync

import (
	"context"
	"log/slog"
	"strings"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/littleweb/sitebox/internal/client/config"
	"github.com/littleweb/sitebox/internal/client/workspace"
	"github.com/littleweb/sitebox/internal/sitemsg"
	"github.com/littleweb/sitebox/internal/sitesdk"
	"golang.org/x/sync/errgroup"
)

const (
	// watchdogInterval is how often stream liveness is checked.
	watchdogInterval = 60 * time.Second

	// streamSilenceLimit is how long a stream may stay silent, pings
	// included, before it is presumed dead and rebuilt.
	streamSilenceLimit = 5 * time.Minute
)

// LiveSyncRelay receives browser live-sync payloads from other devices.
// Payloads are relayed in memory only, never written to disk.
type LiveSyncRelay func(msg sitemsg.LiveSync)

// SyncEngine owns the full bidirectional sync lifecycle: the initial
// reconcile, the filesystem watcher, the upload pipeline and the server
// event stream.
type SyncEngine struct {
	cfg   *config.Config
	ws    *workspace.Workspace
	sdk   *sitesdk.SiteSDK
	nodes *NodeMap

	clock   *ClockCalibrator
	ignore  *IgnoreList
	pending *PendingActions
	bus     *EventBus
	stats   *SyncStats

	watcher  *Watcher
	uploader *Uploader
	locks    *pathLocks

	sitesCache   *snapshotCache[[]sitesdk.SiteInfo]
	uploadsCache *snapshotCache[[]sitesdk.UploadInfo]

	// muSync makes full reconciles single-flight; an overlapping trigger
	// is skipped, not queued.
	muSync stdsync.Mutex

	relayMu   stdsync.Mutex
	liveRelay LiveSyncRelay

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func NewEngine(cfg *config.Config, ws *workspace.Workspace, sdk *sitesdk.SiteSDK) *SyncEngine {
	e := &SyncEngine{
		cfg:     cfg,
		ws:      ws,
		sdk:     sdk,
		nodes:   NewNodeMap(ws),
		clock:   &ClockCalibrator{},
		ignore:  NewIgnoreList(),
		pending: NewPendingActions(),
		bus:     NewEventBus(),
		stats:   &SyncStats{},
		locks:   newPathLocks(),
	}

	e.watcher = NewWatcher(ws, e.ignore, e.lastKnownIdentity)
	e.uploader = NewUploader(e.pushFile, e.bus, e.stats)
	e.sitesCache = newSnapshotCache(sdk.Sites.List)
	e.uploadsCache = newSnapshotCache(sdk.Uploads.List)

	return e
}

// Events exposes the engine notification stream for UI layers.
func (e *SyncEngine) Events() <-chan Event {
	return e.bus.Events()
}

// Stats returns a snapshot of activity counters.
func (e *SyncEngine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// SetLiveSyncRelay installs the consumer for browser live-sync payloads.
func (e *SyncEngine) SetLiveSyncRelay(relay LiveSyncRelay) {
	e.relayMu.Lock()
	defer e.relayMu.Unlock()
	e.liveRelay = relay
}

// Start calibrates, reconciles once, then runs the watcher, uploader,
// event stream and watchdog until Stop or ctx cancellation.
func (e *SyncEngine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if status, err := e.sdk.Status(runCtx); err != nil {
		// calibration is best effort; sync proceeds with zero offset
		slog.Warn("initial status failed", "error", err)
	} else {
		e.clock.Calibrate(status.ServerTime.UnixMilli())
		slog.Info("authenticated", "username", status.Username)
	}

	if err := e.nodes.Load(); err != nil {
		e.running.Store(false)
		cancel()
		return err
	}

	if err := e.Reconcile(runCtx, true); err != nil {
		slog.Warn("initial reconcile failed", "error", err)
	}

	e.group, _ = errgroup.WithContext(runCtx)
	e.group.Go(func() error {
		err := e.watcher.Start(runCtx)
		if err != nil && runCtx.Err() == nil {
			slog.Error("watcher stopped", "error", err)
			return err
		}
		return nil
	})
	e.group.Go(func() error {
		e.localLoop(runCtx)
		return nil
	})
	e.group.Go(func() error {
		e.uploader.Run(runCtx)
		return nil
	})

	if err := e.sdk.Events.Connect(runCtx); err != nil {
		slog.Warn("event stream connect failed, will rely on watchdog", "error", err)
	} else {
		e.bus.Publish(EventStreamUp, "", nil)
	}

	e.group.Go(func() error {
		e.remoteLoop(runCtx)
		return nil
	})
	e.group.Go(func() error {
		e.watchdog(runCtx)
		return nil
	})

	slog.Info("sync engine started", "root", e.ws.Root)
	return nil
}

// Stop shuts the engine down and persists state.
func (e *SyncEngine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}

	if e.cancel != nil {
		e.cancel()
	}
	e.sdk.Close()
	e.uploader.Clear()
	if e.group != nil {
		if err := e.group.Wait(); err != nil {
			slog.Warn("engine worker exited with error", "error", err)
		}
	}

	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save on stop", "error", err)
	}
	slog.Info("sync engine stopped")
}

// watchdog covers the two ways stream events get lost: a rebuilt stream
// (reconcile on every reconnect) and a silently dead one (force a rebuild
// and poll anyway, connected or not).
func (e *SyncEngine) watchdog(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-e.sdk.Events.Reconnected():
			e.handleStreamRecovered(ctx)

		case <-ticker.C:
			if time.Since(e.sdk.Events.LastActivity()) < streamSilenceLimit {
				continue
			}
			slog.Warn("event stream silent, rebuilding and polling", "silence", streamSilenceLimit)
			e.bus.Publish(EventStreamDown, "", nil)
			e.sdk.Events.Restart()
			e.poll(ctx)
		}
	}
}

// handleStreamRecovered recovers events that fired while the stream was
// down: anything missed shows up in the fresh listings the poll fetches.
func (e *SyncEngine) handleStreamRecovered(ctx context.Context) {
	slog.Info("event stream recovered, polling for missed changes")
	e.bus.Publish(EventStreamUp, "", nil)
	e.poll(ctx)
}

// poll recalibrates and runs a forced reconcile.
func (e *SyncEngine) poll(ctx context.Context) {
	e.clock.Recalibrate(ctx, e.sdk)
	if err := e.Reconcile(ctx, true); err != nil {
		slog.Warn("poll reconcile failed", "error", err)
	}
}

// lastKnownIdentity feeds the watcher's rename correlation from the node
// map. Only sites are tracked; uploads return no identity.
func (e *SyncEngine) lastKnownIdentity(relPath string) (*uint64, string, bool) {
	_, entry, ok := e.nodes.ByPath(relPath)
	if !ok {
		return nil, "", false
	}
	return entry.Inode, entry.Checksum, true
}

// siteServerPath strips the .html suffix; the server addresses sites
// without it.
func siteServerPath(relPath string) string {
	return strings.TrimSuffix(relPath, ".html")
}

// siteLocalPath restores the .html suffix for the local filesystem.
func siteLocalPath(serverPath string) string {
	return serverPath + ".html"
}
