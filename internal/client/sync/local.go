package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/littleweb/sitebox/internal/sitesdk"
)

// localLoop consumes semantic watcher events until ctx is canceled.
func (e *SyncEngine) localLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-e.watcher.Events():
			e.handleLocal(ctx, event)
		}
	}
}

func (e *SyncEngine) handleLocal(ctx context.Context, event WatchEvent) {
	if !e.running.Load() {
		return
	}

	switch event.Kind {
	case WatchSaved:
		e.uploader.Submit(event.Path)
	case WatchRenamed, WatchMoved:
		e.handleLocalRename(ctx, event)
	case WatchDeleted:
		e.handleLocalDelete(ctx, event.Path)
	}
}

// handleLocalRename propagates a local rename or move. Sites use the
// dedicated server operations so the node id survives; uploads have no
// server-side rename and are re-uploaded under the new path.
func (e *SyncEngine) handleLocalRename(ctx context.Context, event WatchEvent) {
	if !IsSitePath(event.Path) {
		slog.Debug("upload renamed locally, re-uploading under new path",
			"from", event.OldPath, "to", event.Path)
		e.uploader.Submit(event.Path)
		return
	}

	if res := ValidateSitePath(event.Path); !res.Valid {
		slog.Warn("rename target invalid, keeping server copy at old path",
			"path", event.Path, "reason", res.Reason)
		e.bus.Publish(EventSyncError, event.Path, &ValidationError{Path: event.Path, Reason: res.Reason})
		return
	}

	id, entry, ok := e.nodes.ByPath(event.OldPath)
	if !ok {
		// editors that rewrite on rename leave the old path untracked;
		// match by inode or checksum before treating it as new work
		abs := e.ws.AbsPath(event.Path)
		if checksum, err := ChecksumFile(abs); err == nil {
			if mid, mentry, mok := e.nodes.ByIdentity(fileInode(abs), checksum); mok {
				if _, err := os.Stat(e.ws.AbsPath(mentry.Path)); os.IsNotExist(err) {
					id, entry, ok = mid, mentry, true
				}
			}
		}
	}
	if !ok {
		// untracked file appeared under a new name; plain upload
		e.uploader.Submit(event.Path)
		return
	}

	e.locks.Lock(event.OldPath)
	defer e.locks.Unlock(event.OldPath)

	var err error
	if event.Kind == WatchMoved {
		e.pending.Add(pendingToken("moved", id))
		err = e.sdk.Sites.Move(ctx, int64(id), path.Dir(siteServerPath(event.Path)))
	} else {
		e.pending.Add(pendingToken("renamed", id))
		err = e.sdk.Sites.Rename(ctx, int64(id), path.Base(siteServerPath(event.Path)))
	}
	if err != nil {
		slog.Error("server rename failed", "path", event.Path, "error", err)
		e.stats.Errors.Add(1)
		e.bus.Publish(EventSyncError, event.Path, err)
		return
	}

	entry.Path = event.Path
	entry.Inode = fileInode(e.ws.AbsPath(event.Path))
	e.nodes.Set(id, entry)
	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save", "error", err)
	}
	e.sitesCache.Invalidate()

	e.stats.Renames.Add(1)
	e.bus.Publish(EventFileRenamed, event.Path, nil)
	slog.Info("renamed on server", "from", event.OldPath, "to", event.Path, "nodeId", id)
}

// handleLocalDelete propagates a local delete. Only tracked sites delete
// server-side; uploads have no delete endpoint and untracked files have
// nothing to delete.
func (e *SyncEngine) handleLocalDelete(ctx context.Context, relPath string) {
	if !IsSitePath(relPath) {
		slog.Debug("upload deleted locally, server copy retained", "path", relPath)
		return
	}

	id, _, ok := e.nodes.ByPath(relPath)
	if !ok {
		return
	}

	e.locks.Lock(relPath)
	defer e.locks.Unlock(relPath)

	e.pending.Add(pendingToken("deleted", id))
	if err := e.sdk.Sites.Delete(ctx, int64(id)); err != nil {
		slog.Error("server delete failed", "path", relPath, "error", err)
		e.stats.Errors.Add(1)
		e.bus.Publish(EventSyncError, relPath, err)
		return
	}

	e.nodes.Delete(id)
	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save", "error", err)
	}
	e.sitesCache.Invalidate()

	e.stats.Deletes.Add(1)
	e.bus.Publish(EventFileTrashed, relPath, nil)
	slog.Info("deleted on server", "path", relPath, "nodeId", id)
}

// pushFile uploads one path's current on-disk content. Called from the
// uploader; errors flow back into its retry schedule.
func (e *SyncEngine) pushFile(ctx context.Context, relPath string) error {
	e.locks.Lock(relPath)
	defer e.locks.Unlock(relPath)

	absPath := e.ws.AbsPath(relPath)
	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		// deleted while queued
		return nil
	}
	if err != nil {
		return fmt.Errorf("push %s: %w", relPath, err)
	}

	if IsSitePath(relPath) {
		return e.pushSite(ctx, relPath, absPath, info)
	}
	return e.pushUpload(ctx, relPath, absPath, info)
}

func (e *SyncEngine) pushSite(ctx context.Context, relPath, absPath string, info os.FileInfo) error {
	if res := ValidateSitePath(relPath); !res.Valid {
		return &ValidationError{Path: relPath, Reason: res.Reason}
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("push %s: %w", relPath, err)
	}
	checksum := Checksum(content)

	if remote, ok := e.remoteSite(ctx, relPath); ok && remote.Checksum == checksum {
		slog.Debug("content unchanged, skipping upload", "path", relPath)
		e.nodes.Set(NodeID(remote.NodeID), NodeEntry{
			Path:     relPath,
			Checksum: checksum,
			Inode:    fileInode(absPath),
		})
		return nil
	}

	uploaded, err := e.sdk.Sites.Upload(ctx, &sitesdk.UploadSiteParams{
		Filename:   siteServerPath(relPath),
		Content:    string(content),
		ModifiedAt: info.ModTime(),
		SenderID:   e.cfg.DeviceID,
	})
	if err != nil {
		return err
	}

	id := NodeID(uploaded.NodeID)
	e.pending.Add(pendingToken("saved", id))
	e.nodes.Set(id, NodeEntry{
		Path:     relPath,
		Checksum: checksum,
		Inode:    fileInode(absPath),
	})
	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save", "error", err)
	}
	e.sitesCache.Invalidate()

	slog.Info("site uploaded", "path", relPath, "nodeId", id, "checksum", checksum)
	return nil
}

func (e *SyncEngine) pushUpload(ctx context.Context, relPath, absPath string, info os.FileInfo) error {
	if res := ValidateUploadPath(relPath); !res.Valid {
		return &ValidationError{Path: relPath, Reason: res.Reason}
	}
	if info.Size() > MaxUploadSize {
		return &ValidationError{
			Path:   relPath,
			Reason: fmt.Sprintf("file is %s, limit is %s", humanize.IBytes(uint64(info.Size())), humanize.IBytes(MaxUploadSize)),
		}
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("push %s: %w", relPath, err)
	}
	checksum := Checksum(content)

	if remote, ok := e.remoteUpload(ctx, relPath); ok && remote.Checksum == checksum {
		slog.Debug("content unchanged, skipping upload", "path", relPath)
		return nil
	}

	if err := e.sdk.Uploads.Upload(ctx, &sitesdk.UploadUploadParams{
		Path:       relPath,
		Content:    content,
		ModifiedAt: info.ModTime(),
	}); err != nil {
		return err
	}
	e.uploadsCache.Invalidate()

	slog.Info("upload uploaded", "path", relPath, "checksum", checksum)
	return nil
}

// remoteSite looks relPath up in the (possibly cached) server listing.
func (e *SyncEngine) remoteSite(ctx context.Context, relPath string) (sitesdk.SiteInfo, bool) {
	sites, err := e.sitesCache.Get(ctx, false)
	if err != nil {
		return sitesdk.SiteInfo{}, false
	}
	serverPath := siteServerPath(relPath)
	for _, site := range sites {
		if site.Path == serverPath {
			return site, true
		}
	}
	return sitesdk.SiteInfo{}, false
}

// remoteUpload looks relPath up in the (possibly cached) upload listing.
func (e *SyncEngine) remoteUpload(ctx context.Context, relPath string) (sitesdk.UploadInfo, bool) {
	uploads, err := e.uploadsCache.Get(ctx, false)
	if err != nil {
		return sitesdk.UploadInfo{}, false
	}
	for _, upload := range uploads {
		if upload.Path == relPath {
			return upload, true
		}
	}
	return sitesdk.UploadInfo{}, false
}
