package sync

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/littleweb/sitebox/internal/client/workspace"
)

const (
	// watchDebounce coalesces editor write bursts into one event per path.
	watchDebounce = 500 * time.Millisecond

	// unlinkGrace is how long a disappearance waits for a matching
	// reappearance before it becomes a delete. Renames and atomic-save
	// editors produce unlink+create pairs inside this window.
	unlinkGrace = 500 * time.Millisecond

	// ignoreOnceTTL bounds how long a self-write suppression mark lives.
	ignoreOnceTTL = 10 * time.Second

	rawEventBuffer   = 256
	watchEventBuffer = 128
)

// WatchKind is the semantic classification of a filesystem change.
type WatchKind int

const (
	WatchSaved WatchKind = iota
	WatchRenamed
	WatchMoved
	WatchDeleted
)

func (k WatchKind) String() string {
	switch k {
	case WatchSaved:
		return "saved"
	case WatchRenamed:
		return "renamed"
	case WatchMoved:
		return "moved"
	default:
		return "deleted"
	}
}

// WatchEvent is one semantic change. OldPath is set for renames and moves.
type WatchEvent struct {
	Kind    WatchKind
	Path    string
	OldPath string
}

// identityResolver returns the last known identity of a tracked path, used
// to correlate a disappearance with a reappearance elsewhere. ok is false
// for untracked paths.
type identityResolver func(relPath string) (inode *uint64, checksum string, ok bool)

type pendingUnlink struct {
	inode    *uint64
	checksum string
	timer    *time.Timer
}

// Watcher turns raw filesystem notifications into semantic events. Raw
// events are debounced per path, classified by stat, and unlink+create
// pairs within the grace window are folded into renames or moves.
type Watcher struct {
	ws       *workspace.Workspace
	ignore   *IgnoreList
	identity identityResolver
	out      chan WatchEvent

	mu         stdsync.Mutex
	debounce   map[string]*time.Timer
	unlinks    map[string]*pendingUnlink
	ignoreOnce map[string]time.Time

	raw  chan notify.EventInfo
	done chan struct{}
}

func NewWatcher(ws *workspace.Workspace, ignore *IgnoreList, identity identityResolver) *Watcher {
	return &Watcher{
		ws:         ws,
		ignore:     ignore,
		identity:   identity,
		out:        make(chan WatchEvent, watchEventBuffer),
		debounce:   make(map[string]*time.Timer),
		unlinks:    make(map[string]*pendingUnlink),
		ignoreOnce: make(map[string]time.Time),
		raw:        make(chan notify.EventInfo, rawEventBuffer),
		done:       make(chan struct{}),
	}
}

// Events returns the semantic event channel.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.out
}

// IgnoreOnce suppresses the next event for relPath. The engine calls this
// before writing a file itself so its own writes do not loop back as local
// changes.
func (w *Watcher) IgnoreOnce(relPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignoreOnce[relPath] = time.Now().Add(ignoreOnceTTL)
}

func (w *Watcher) consumeIgnoreOnce(relPath string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline, ok := w.ignoreOnce[relPath]
	if !ok {
		return false
	}
	delete(w.ignoreOnce, relPath)
	return time.Now().Before(deadline)
}

// Start begins watching the workspace root recursively. It blocks until ctx
// is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	watchPath := filepath.Join(w.ws.Root, "...")
	if err := notify.Watch(watchPath, w.raw, notify.All); err != nil {
		return err
	}
	defer notify.Stop(w.raw)
	defer close(w.done)

	slog.Info("watcher started", "root", w.ws.Root)

	for {
		select {
		case <-ctx.Done():
			w.cancelTimers()
			return ctx.Err()
		case ev := <-w.raw:
			w.handleRaw(ev)
		}
	}
}

func (w *Watcher) handleRaw(ev notify.EventInfo) {
	relPath, ok := w.ws.RelPath(ev.Path())
	if !ok || w.ignore.Ignored(relPath) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[relPath]; ok {
		timer.Reset(watchDebounce)
		return
	}
	w.debounce[relPath] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.debounce, relPath)
		w.mu.Unlock()
		w.classify(relPath)
	})
}

// classify decides what a settled path change means by looking at the
// filesystem, not at the raw event flags; flags differ across platforms
// and editors.
func (w *Watcher) classify(relPath string) {
	if w.consumeIgnoreOnce(relPath) {
		slog.Debug("self-write suppressed", "path", relPath)
		return
	}

	absPath := w.ws.AbsPath(relPath)
	info, err := os.Stat(absPath)

	switch {
	case err == nil && info.Mode().IsRegular():
		w.handlePresent(relPath, absPath)
	case err == nil:
		// directories produce no semantic events themselves
	case os.IsNotExist(err):
		w.handleAbsent(relPath)
	default:
		slog.Warn("watcher stat failed", "path", relPath, "error", err)
	}
}

// handlePresent emits saved, or folds the change into a rename/move when a
// recently unlinked path has the same identity.
func (w *Watcher) handlePresent(relPath, absPath string) {
	inode := fileInode(absPath)
	checksum, err := ChecksumFile(absPath)
	if err != nil {
		checksum = ""
	}

	if oldPath, ok := w.claimUnlink(inode, checksum); ok && oldPath != relPath {
		kind := WatchRenamed
		if path.Dir(oldPath) != path.Dir(relPath) {
			kind = WatchMoved
		}
		w.emit(WatchEvent{Kind: kind, Path: relPath, OldPath: oldPath})
		return
	}

	w.emit(WatchEvent{Kind: WatchSaved, Path: relPath})
}

// handleAbsent holds the disappearance for the grace window. If nothing
// claims it, it is a real delete.
func (w *Watcher) handleAbsent(relPath string) {
	var inode *uint64
	var checksum string
	if w.identity != nil {
		inode, checksum, _ = w.identity(relPath)
	}

	w.mu.Lock()
	if existing, ok := w.unlinks[relPath]; ok {
		existing.timer.Reset(unlinkGrace)
		w.mu.Unlock()
		return
	}
	pending := &pendingUnlink{inode: inode, checksum: checksum}
	pending.timer = time.AfterFunc(unlinkGrace, func() {
		w.mu.Lock()
		_, live := w.unlinks[relPath]
		delete(w.unlinks, relPath)
		w.mu.Unlock()
		if live {
			w.emit(WatchEvent{Kind: WatchDeleted, Path: relPath})
		}
	})
	w.unlinks[relPath] = pending
	w.mu.Unlock()
}

// claimUnlink matches a new file against pending unlinks, inode first, then
// checksum. A claimed unlink never becomes a delete.
func (w *Watcher) claimUnlink(inode *uint64, checksum string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if inode != nil {
		for oldPath, pending := range w.unlinks {
			if pending.inode != nil && *pending.inode == *inode {
				pending.timer.Stop()
				delete(w.unlinks, oldPath)
				return oldPath, true
			}
		}
	}
	if checksum != "" {
		for oldPath, pending := range w.unlinks {
			if pending.checksum == checksum {
				pending.timer.Stop()
				delete(w.unlinks, oldPath)
				return oldPath, true
			}
		}
	}
	return "", false
}

func (w *Watcher) emit(event WatchEvent) {
	select {
	case <-w.done:
	case w.out <- event:
		slog.Debug("watch event", "kind", event.Kind.String(), "path", event.Path, "oldPath", event.OldPath)
	default:
		slog.Warn("watch event dropped, consumer too slow", "kind", event.Kind.String(), "path", event.Path)
	}
}

func (w *Watcher) cancelTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
	for _, pending := range w.unlinks {
		pending.timer.Stop()
	}
}
