package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/littleweb/sitebox/internal/sitesdk"
)

// localFile is one scanned workspace entry.
type localFile struct {
	relPath  string
	checksum string
	modTime  time.Time
}

// Reconcile converges local and server state: adoption and moves first so
// relocated files are not duplicated, then content, then existence, then
// local-only work. Overlapping triggers are skipped; one full pass at a time.
func (e *SyncEngine) Reconcile(ctx context.Context, force bool) error {
	if !e.muSync.TryLock() {
		slog.Debug("reconcile already running, skipping")
		return nil
	}
	defer e.muSync.Unlock()

	e.bus.Publish(EventSyncStart, "", nil)
	slog.Info("reconcile starting", "force", force)

	sites, err := e.sitesCache.Get(ctx, force)
	if err != nil {
		e.bus.Publish(EventSyncError, "", err)
		return fmt.Errorf("reconcile: list sites: %w", err)
	}
	uploads, err := e.uploadsCache.Get(ctx, force)
	if err != nil {
		e.bus.Publish(EventSyncError, "", err)
		return fmt.Errorf("reconcile: list uploads: %w", err)
	}

	local, err := e.scanLocal()
	if err != nil {
		e.bus.Publish(EventSyncError, "", err)
		return fmt.Errorf("reconcile: scan: %w", err)
	}

	warnDuplicateBasenames(sites)

	e.adoptUntrackedMatches(sites, local)
	e.reconcileSiteMoves(sites, local)
	e.reconcileSiteContent(ctx, sites, local)
	e.reconcileSiteDeletes(ctx, sites, local)
	e.reconcileLocalOnlySites(sites, local)
	e.reconcileUploads(ctx, uploads, local)

	if err := e.nodes.Save(); err != nil {
		slog.Warn("node map save", "error", err)
	}
	if err := e.nodes.SaveState(e.clock.Adjusted().UnixMilli()); err != nil {
		slog.Warn("sync state save", "error", err)
	}

	e.stats.Reconciles.Add(1)
	e.bus.Publish(EventSyncComplete, "", nil)
	slog.Info("reconcile complete", "sites", len(sites), "uploads", len(uploads), "local", len(local))
	return nil
}

// scanLocal walks the workspace collecting syncable files keyed by
// relative path.
func (e *SyncEngine) scanLocal() (map[string]localFile, error) {
	files := make(map[string]localFile)

	err := filepath.WalkDir(e.ws.Root, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, ok := e.ws.RelPath(absPath)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if e.ignore.Ignored(relPath + "/") {
				return fs.SkipDir
			}
			return nil
		}
		if e.ignore.Ignored(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		checksum, err := ChecksumFile(absPath)
		if err != nil {
			slog.Warn("scan checksum failed", "path", relPath, "error", err)
			return nil
		}
		files[relPath] = localFile{relPath: relPath, checksum: checksum, modTime: info.ModTime()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// trackedPathSet returns the relative paths currently bound to node ids.
func (e *SyncEngine) trackedPathSet() map[string]struct{} {
	tracked := make(map[string]struct{})
	for _, entry := range e.nodes.Snapshot() {
		tracked[entry.Path] = struct{}{}
	}
	return tracked
}

// adoptUntrackedMatches claims server files whose exact content already
// exists locally under another, unassigned path. The local copy is moved
// into place and bound to the node instead of being downloaded at the
// server path and re-uploaded from the old one. This is the cold-start
// case: files predate the node map.
func (e *SyncEngine) adoptUntrackedMatches(sites []sitesdk.SiteInfo, local map[string]localFile) {
	tracked := e.trackedPathSet()
	serverRel := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		serverRel[siteLocalPath(site.Path)] = struct{}{}
	}

	for _, site := range sites {
		relPath := siteLocalPath(site.Path)
		id := NodeID(site.NodeID)

		if _, isTracked := e.nodes.Get(id); isTracked {
			continue
		}
		if _, exists := local[relPath]; exists {
			continue
		}

		for rel, lf := range local {
			if rel == relPath || !IsSitePath(rel) {
				continue
			}
			if _, isTracked := tracked[rel]; isTracked {
				continue
			}
			if _, onServer := serverRel[rel]; onServer {
				continue
			}
			if lf.checksum != site.Checksum {
				continue
			}

			e.locks.Lock(rel)
			err := e.relocateLocal(rel, relPath)
			e.locks.Unlock(rel)
			if err != nil {
				slog.Warn("adoption move failed", "from", rel, "to", relPath, "error", err)
				e.stats.Errors.Add(1)
				break
			}

			delete(local, rel)
			local[relPath] = localFile{relPath: relPath, checksum: lf.checksum, modTime: lf.modTime}
			e.nodes.Set(id, NodeEntry{
				Path:     relPath,
				Checksum: lf.checksum,
				Inode:    fileInode(e.ws.AbsPath(relPath)),
			})
			tracked[relPath] = struct{}{}
			slog.Info("adopted local file for server site", "from", rel, "to", relPath, "nodeId", id)
			break
		}
	}
}

// reconcileSiteMoves realizes server-side renames before content sync so a
// moved file is not first re-downloaded at its new path and trashed at its
// old one.
func (e *SyncEngine) reconcileSiteMoves(sites []sitesdk.SiteInfo, local map[string]localFile) {
	for _, site := range sites {
		serverRel := siteLocalPath(site.Path)
		id := NodeID(site.NodeID)

		entry, tracked := e.nodes.Get(id)
		if !tracked || entry.Path == serverRel {
			continue
		}
		lf, existsLocally := local[entry.Path]
		if !existsLocally {
			continue
		}
		// only move when the local file is still the tracked content;
		// an edited file goes through content reconciliation instead
		if lf.checksum != entry.Checksum {
			continue
		}

		e.applyRemoteMove(id, entry, serverRel)
		delete(local, entry.Path)
		local[serverRel] = localFile{relPath: serverRel, checksum: lf.checksum, modTime: lf.modTime}
	}
}

// reconcileSiteContent settles content differences per site. Checksum-equal
// copies are skipped; local files that are newer or deliberately
// future-dated are protected, never overwritten; everything else downloads.
func (e *SyncEngine) reconcileSiteContent(ctx context.Context, sites []sitesdk.SiteInfo, local map[string]localFile) {
	for _, site := range sites {
		relPath := siteLocalPath(site.Path)
		id := NodeID(site.NodeID)
		lf, existsLocally := local[relPath]

		switch {
		case !existsLocally:
			_, tracked := e.nodes.Get(id)
			if tracked {
				// tracked but gone: offline-change detection decides
				continue
			}
			if err := e.downloadSite(ctx, site); err != nil {
				slog.Warn("download failed", "path", relPath, "error", err)
				e.stats.Errors.Add(1)
			}

		case lf.checksum == site.Checksum:
			// converged; refresh tracking only
			e.nodes.Set(id, NodeEntry{Path: relPath, Checksum: lf.checksum, Inode: fileInode(e.ws.AbsPath(relPath))})
			e.stats.DownloadsSkipped.Add(1)

		case e.clock.IsFutureDated(lf.modTime) || e.clock.LocalIsNewer(lf.modTime, site.ModifiedAt.UnixMilli()):
			// the local edit outranks the server copy; leave the file
			// alone and let the watcher push the next save
			e.stats.Protected.Add(1)
			slog.Debug("local edit protected", "path", relPath)

		default:
			if err := e.downloadSite(ctx, site); err != nil {
				slog.Warn("download failed", "path", relPath, "error", err)
				e.stats.Errors.Add(1)
			}
		}
	}
}

// reconcileSiteDeletes settles disagreements about existence. Entirely
// skipped on a never-synced workspace: without a watermark every absence is
// ambiguous, and the first pass must not trash files or infer structure.
func (e *SyncEngine) reconcileSiteDeletes(ctx context.Context, sites []sitesdk.SiteInfo, local map[string]localFile) {
	lastSynced := e.nodes.LastSyncedAt()
	if lastSynced == 0 {
		return
	}

	remote := make(map[NodeID]sitesdk.SiteInfo, len(sites))
	remoteRel := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		remote[NodeID(site.NodeID)] = site
		remoteRel[siteLocalPath(site.Path)] = struct{}{}
	}
	tracked := e.trackedPathSet()

	for id, entry := range e.nodes.Snapshot() {
		site, onServer := remote[id]
		lf, existsLocally := local[entry.Path]

		switch {
		case onServer && existsLocally:
			continue

		case !onServer && existsLocally:
			if lf.modTime.UnixMilli() > lastSynced {
				// deleted remotely but touched here since the last sync;
				// the local copy survives and re-uploads as a fresh site
				slog.Info("delete conflict, local edit wins", "path", entry.Path)
				e.stats.Conflicts.Add(1)
				e.bus.Publish(EventSyncConflict, entry.Path, nil)
				e.nodes.Delete(id)
				delete(tracked, entry.Path)
				continue
			}
			if err := backupIfExists(e.ws, entry.Path); err != nil {
				slog.Warn("backup before trash failed", "path", entry.Path, "error", err)
			}
			e.watcher.IgnoreOnce(entry.Path)
			if err := moveToTrash(e.ws, entry.Path); err != nil {
				slog.Warn("trash failed", "path", entry.Path, "error", err)
				e.stats.Errors.Add(1)
				continue
			}
			e.nodes.Delete(id)
			delete(local, entry.Path)
			delete(tracked, entry.Path)
			e.stats.Deletes.Add(1)
			e.bus.Publish(EventFileTrashed, entry.Path, nil)

		case onServer && !existsLocally:
			// the file may have been renamed or moved while offline;
			// look for it before concluding it was deleted
			if newRel, ok := e.matchOfflineRelocation(entry, local, tracked, remoteRel); ok {
				if err := e.applyOfflineRelocation(ctx, id, entry, newRel, local); err != nil {
					slog.Warn("offline rename propagation failed", "from", entry.Path, "to", newRel, "error", err)
					e.stats.Errors.Add(1)
					continue
				}
				tracked[newRel] = struct{}{}
				delete(tracked, entry.Path)
				continue
			}

			if site.ModifiedAt.UnixMilli() > lastSynced {
				// deleted here (possibly offline) but changed on the
				// server since; the newer server content wins
				slog.Info("delete conflict, server edit wins", "path", entry.Path)
				e.stats.Conflicts.Add(1)
				e.bus.Publish(EventSyncConflict, entry.Path, nil)
				if err := e.downloadSite(ctx, site); err != nil {
					slog.Warn("download failed", "path", entry.Path, "error", err)
					e.stats.Errors.Add(1)
				}
				continue
			}
			e.pending.Add(pendingToken("deleted", id))
			if err := e.sdk.Sites.Delete(ctx, int64(id)); err != nil {
				slog.Warn("server delete failed", "path", entry.Path, "error", err)
				e.stats.Errors.Add(1)
				continue
			}
			e.nodes.Delete(id)
			delete(tracked, entry.Path)
			e.sitesCache.Invalidate()
			e.stats.Deletes.Add(1)

		default:
			// gone on both sides; just forget it
			e.nodes.Delete(id)
			delete(tracked, entry.Path)
		}
	}
}

// matchOfflineRelocation finds the unassigned local file a missing tracked
// file became while the client was offline: same basename in a new folder,
// then same inode, then same content checksum (editors rewrite inodes).
func (e *SyncEngine) matchOfflineRelocation(entry NodeEntry, local map[string]localFile, tracked, remoteRel map[string]struct{}) (string, bool) {
	unassigned := func(rel string) bool {
		if rel == entry.Path || !IsSitePath(rel) {
			return false
		}
		if _, isTracked := tracked[rel]; isTracked {
			return false
		}
		_, onServer := remoteRel[rel]
		return !onServer
	}

	base := path.Base(entry.Path)
	for rel := range local {
		if unassigned(rel) && path.Base(rel) == base {
			return rel, true
		}
	}
	if entry.Inode != nil {
		for rel := range local {
			if !unassigned(rel) {
				continue
			}
			if ino := fileInode(e.ws.AbsPath(rel)); ino != nil && *ino == *entry.Inode {
				return rel, true
			}
		}
	}
	if entry.Checksum != "" {
		for rel, lf := range local {
			if unassigned(rel) && lf.checksum == entry.Checksum {
				return rel, true
			}
		}
	}
	return "", false
}

// applyOfflineRelocation tells the server about a rename or move that
// happened while the client was offline. The disk is already right; only
// the server and the node map catch up. Tokens go in before the calls so
// the echoes are swallowed.
func (e *SyncEngine) applyOfflineRelocation(ctx context.Context, id NodeID, entry NodeEntry, newRel string, local map[string]localFile) error {
	if res := ValidateSitePath(newRel); !res.Valid {
		return &ValidationError{Path: newRel, Reason: res.Reason}
	}

	oldServer := siteServerPath(entry.Path)
	newServer := siteServerPath(newRel)

	if path.Base(newServer) != path.Base(oldServer) {
		e.pending.Add(pendingToken("renamed", id))
		if err := e.sdk.Sites.Rename(ctx, int64(id), path.Base(newServer)); err != nil {
			return err
		}
	}
	if path.Dir(newServer) != path.Dir(oldServer) {
		e.pending.Add(pendingToken("moved", id))
		if err := e.sdk.Sites.Move(ctx, int64(id), path.Dir(newServer)); err != nil {
			return err
		}
	}

	lf := local[newRel]
	e.nodes.Set(id, NodeEntry{
		Path:     newRel,
		Checksum: lf.checksum,
		Inode:    fileInode(e.ws.AbsPath(newRel)),
	})
	e.sitesCache.Invalidate()
	e.stats.Renames.Add(1)
	e.bus.Publish(EventFileRenamed, newRel, nil)
	slog.Info("offline rename propagated", "from", entry.Path, "to", newRel, "nodeId", id)
	return nil
}

// reconcileLocalOnlySites pushes untracked local sites the server has never
// seen. A basename already on the server under a different path is held
// back: it is far more likely a missed rename than genuinely new work, and
// uploading it would mint a duplicate node.
func (e *SyncEngine) reconcileLocalOnlySites(sites []sitesdk.SiteInfo, local map[string]localFile) {
	tracked := e.trackedPathSet()
	remoteRel := make(map[string]struct{}, len(sites))
	remoteBase := make(map[string]string, len(sites))
	for _, site := range sites {
		rel := siteLocalPath(site.Path)
		remoteRel[rel] = struct{}{}
		remoteBase[path.Base(rel)] = rel
	}

	for relPath := range local {
		if !IsSitePath(relPath) {
			continue
		}
		if _, onServer := remoteRel[relPath]; onServer {
			continue
		}
		if _, isTracked := tracked[relPath]; isTracked {
			continue
		}
		if serverPath, taken := remoteBase[path.Base(relPath)]; taken {
			slog.Warn("basename already on server under a different path, holding upload",
				"path", relPath, "serverPath", serverPath)
			continue
		}
		e.uploader.Submit(relPath)
	}
}

// reconcileUploads settles the opaque files. Uploads carry no node ids;
// identity is the path itself.
func (e *SyncEngine) reconcileUploads(ctx context.Context, uploads []sitesdk.UploadInfo, local map[string]localFile) {
	remote := make(map[string]sitesdk.UploadInfo, len(uploads))
	for _, upload := range uploads {
		remote[upload.Path] = upload
	}

	for _, upload := range uploads {
		lf, existsLocally := local[upload.Path]

		switch {
		case !existsLocally:
			if err := e.downloadUpload(ctx, upload); err != nil {
				slog.Warn("upload download failed", "path", upload.Path, "error", err)
				e.stats.Errors.Add(1)
			}
		case lf.checksum == upload.Checksum:
			e.stats.DownloadsSkipped.Add(1)
		default:
			if e.clock.IsFutureDated(lf.modTime) || e.clock.LocalIsNewer(lf.modTime, upload.ModifiedAt.UnixMilli()) {
				e.uploader.Submit(upload.Path)
			} else if err := e.downloadUpload(ctx, upload); err != nil {
				slog.Warn("upload download failed", "path", upload.Path, "error", err)
				e.stats.Errors.Add(1)
			}
		}
	}

	for relPath := range local {
		if IsSitePath(relPath) {
			continue
		}
		if _, onServer := remote[relPath]; !onServer {
			e.uploader.Submit(relPath)
		}
	}
}

// downloadSite fetches one site and writes it through with backup and
// self-write suppression.
func (e *SyncEngine) downloadSite(ctx context.Context, site sitesdk.SiteInfo) error {
	relPath := siteLocalPath(site.Path)

	e.locks.Lock(relPath)
	defer e.locks.Unlock(relPath)

	downloaded, err := e.sdk.Sites.Download(ctx, site.Path)
	if err != nil {
		return err
	}

	if err := backupIfExists(e.ws, relPath); err != nil {
		slog.Warn("backup before overwrite failed", "path", relPath, "error", err)
	}

	absPath := e.ws.AbsPath(relPath)
	e.watcher.IgnoreOnce(relPath)
	if err := writeFileAtomic(absPath, []byte(downloaded.Content)); err != nil {
		return err
	}

	e.nodes.Set(NodeID(site.NodeID), NodeEntry{
		Path:     relPath,
		Checksum: downloaded.Checksum,
		Inode:    fileInode(absPath),
	})

	e.stats.Downloads.Add(1)
	e.bus.Publish(EventFileDownload, relPath, nil)
	slog.Info("site downloaded", "path", relPath, "nodeId", site.NodeID)
	return nil
}

// downloadUpload fetches one opaque file and writes it through.
func (e *SyncEngine) downloadUpload(ctx context.Context, upload sitesdk.UploadInfo) error {
	relPath := upload.Path

	e.locks.Lock(relPath)
	defer e.locks.Unlock(relPath)

	downloaded, err := e.sdk.Uploads.Download(ctx, upload.Path)
	if err != nil {
		return err
	}

	if err := backupIfExists(e.ws, relPath); err != nil {
		slog.Warn("backup before overwrite failed", "path", relPath, "error", err)
	}

	e.watcher.IgnoreOnce(relPath)
	if err := writeFileAtomic(e.ws.AbsPath(relPath), downloaded.Content); err != nil {
		return err
	}

	e.stats.Downloads.Add(1)
	e.bus.Publish(EventFileDownload, relPath, nil)
	slog.Info("upload downloaded", "path", relPath)
	return nil
}

// warnDuplicateBasenames flags sites in different folders sharing a name;
// rename correlation by checksum can mistake one for the other.
func warnDuplicateBasenames(sites []sitesdk.SiteInfo) {
	seen := make(map[string]string, len(sites))
	for _, site := range sites {
		base := path.Base(site.Path)
		if prev, dup := seen[base]; dup {
			slog.Warn("duplicate site name in different folders", "name", base, "paths", []string{prev, site.Path})
		}
		seen[base] = site.Path
	}
}
