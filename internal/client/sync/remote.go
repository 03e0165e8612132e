package sync

import (
	"context"
	"log/slog"
	"os"
	"path"

	"github.com/littleweb/sitebox/internal/sitemsg"
	"github.com/littleweb/sitebox/internal/utils"
)

// remoteLoop consumes server stream messages until ctx is canceled.
func (e *SyncEngine) remoteLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-e.sdk.Events.Get():
			if !ok {
				return
			}
			e.handleRemote(msg)
		}
	}
}

func (e *SyncEngine) handleRemote(msg *sitemsg.Message) {
	if !e.running.Load() {
		return
	}

	switch payload := msg.Data.(type) {
	case sitemsg.LiveSync:
		e.handleLiveSync(payload)
	case sitemsg.FileSaved:
		e.handleRemoteSaved(payload)
	case sitemsg.FileRenamed:
		e.handleRemoteRenamed(payload)
	case sitemsg.FileMoved:
		e.handleRemoteMoved(payload)
	case sitemsg.FileDeleted:
		e.handleRemoteDeleted(payload)
	default:
		slog.Warn("unhandled stream message", "type", msg.Type)
	}
}

// handleLiveSync relays browser editing traffic in memory. Our own sends
// echo back tagged with our device id and are dropped.
func (e *SyncEngine) handleLiveSync(payload sitemsg.LiveSync) {
	if payload.Sender == e.cfg.DeviceID {
		return
	}

	e.relayMu.Lock()
	relay := e.liveRelay
	e.relayMu.Unlock()

	if relay != nil {
		relay(payload)
	}
}

// handleRemoteSaved writes another device's save to disk. Our own upload
// echoes are consumed via the pending token; checksum-equal content is a
// metadata-only update.
func (e *SyncEngine) handleRemoteSaved(payload sitemsg.FileSaved) {
	id := NodeID(payload.NodeID)
	if e.pending.Consume(pendingToken("saved", id)) {
		slog.Debug("own save echo suppressed", "nodeId", id)
		return
	}

	relPath := siteLocalPath(payload.File)
	e.locks.Lock(relPath)
	defer e.locks.Unlock(relPath)

	absPath := e.ws.AbsPath(relPath)
	if local, err := ChecksumFile(absPath); err == nil && local == payload.Checksum {
		e.nodes.Set(id, NodeEntry{Path: relPath, Checksum: payload.Checksum, Inode: fileInode(absPath)})
		return
	}

	if err := backupIfExists(e.ws, relPath); err != nil {
		slog.Warn("backup before overwrite failed", "path", relPath, "error", err)
	}

	e.watcher.IgnoreOnce(relPath)
	if err := writeFileAtomic(absPath, []byte(payload.Content)); err != nil {
		slog.Error("remote save write failed", "path", relPath, "error", err)
		e.stats.Errors.Add(1)
		e.bus.Publish(EventSyncError, relPath, err)
		return
	}

	e.nodes.Set(id, NodeEntry{Path: relPath, Checksum: payload.Checksum, Inode: fileInode(absPath)})
	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save", "error", err)
	}

	e.stats.Downloads.Add(1)
	e.bus.Publish(EventFileDownload, relPath, nil)
	slog.Info("remote save applied", "path", relPath, "nodeId", id)
}

func (e *SyncEngine) handleRemoteRenamed(payload sitemsg.FileRenamed) {
	id := NodeID(payload.NodeID)
	if e.pending.Consume(pendingToken("renamed", id)) {
		slog.Debug("own rename echo suppressed", "nodeId", id)
		return
	}

	entry, ok := e.nodes.Get(id)
	if !ok {
		slog.Warn("rename for untracked node, waiting for reconcile", "nodeId", id)
		return
	}

	newRel := siteLocalPath(path.Join(path.Dir(siteServerPath(entry.Path)), payload.NewName))
	e.applyRemoteMove(id, entry, newRel)
}

func (e *SyncEngine) handleRemoteMoved(payload sitemsg.FileMoved) {
	id := NodeID(payload.NodeID)
	if e.pending.Consume(pendingToken("moved", id)) {
		slog.Debug("own move echo suppressed", "nodeId", id)
		return
	}

	entry, ok := e.nodes.Get(id)
	if !ok {
		slog.Warn("move for untracked node, waiting for reconcile", "nodeId", id)
		return
	}

	e.applyRemoteMove(id, entry, siteLocalPath(payload.ToPath))
}

// relocateLocal moves a workspace file, suppressing the watcher bounce on
// both paths. Callers hold the path lock.
func (e *SyncEngine) relocateLocal(oldRel, newRel string) error {
	e.watcher.IgnoreOnce(oldRel)
	e.watcher.IgnoreOnce(newRel)

	newAbs := e.ws.AbsPath(newRel)
	if err := utils.EnsureParent(newAbs); err != nil {
		return err
	}
	return os.Rename(e.ws.AbsPath(oldRel), newAbs)
}

// applyRemoteMove relocates a tracked local file to newRel. Both paths are
// marked self-write so the watcher does not bounce the change back.
func (e *SyncEngine) applyRemoteMove(id NodeID, entry NodeEntry, newRel string) {
	oldRel := entry.Path
	if oldRel == newRel {
		return
	}

	e.locks.Lock(oldRel)
	defer e.locks.Unlock(oldRel)

	if err := e.relocateLocal(oldRel, newRel); err != nil {
		slog.Error("remote rename apply failed", "from", oldRel, "to", newRel, "error", err)
		e.stats.Errors.Add(1)
		e.bus.Publish(EventSyncError, newRel, err)
		return
	}

	entry.Path = newRel
	entry.Inode = fileInode(e.ws.AbsPath(newRel))
	e.nodes.Set(id, entry)
	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save", "error", err)
	}

	e.stats.Renames.Add(1)
	e.bus.Publish(EventFileRenamed, newRel, nil)
	slog.Info("remote rename applied", "from", oldRel, "to", newRel, "nodeId", id)
}

// handleRemoteDeleted realizes a server-side delete locally: backup, then
// trash. Nothing is ever unlinked outright.
func (e *SyncEngine) handleRemoteDeleted(payload sitemsg.FileDeleted) {
	id := NodeID(payload.NodeID)
	if e.pending.Consume(pendingToken("deleted", id)) {
		slog.Debug("own delete echo suppressed", "nodeId", id)
		return
	}

	entry, ok := e.nodes.Get(id)
	if !ok {
		return
	}
	relPath := entry.Path

	e.locks.Lock(relPath)
	defer e.locks.Unlock(relPath)

	if err := backupIfExists(e.ws, relPath); err != nil {
		slog.Warn("backup before trash failed", "path", relPath, "error", err)
	}
	e.watcher.IgnoreOnce(relPath)
	if err := moveToTrash(e.ws, relPath); err != nil {
		slog.Error("trash failed", "path", relPath, "error", err)
		e.stats.Errors.Add(1)
		e.bus.Publish(EventSyncError, relPath, err)
		return
	}

	e.nodes.Delete(id)
	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save", "error", err)
	}

	e.stats.Deletes.Add(1)
	e.bus.Publish(EventFileTrashed, relPath, nil)
	slog.Info("remote delete applied", "path", relPath, "nodeId", id)
}
