package sync

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/littleweb/sitebox/internal/client/workspace"
	"github.com/littleweb/sitebox/internal/utils"
)

const uploadsVersionsDirName = "uploads"

// backupTimestamp formats t as YYYY-MM-DD-HH-mm-ss-mmm, sortable and safe
// on every filesystem.
func backupTimestamp(t time.Time) string {
	return t.Format("2006-01-02-15-04-05") + fmt.Sprintf("-%03d", t.Nanosecond()/1e6)
}

// backupIfExists copies the current content of relPath into the versions
// tree before it gets overwritten or trashed. Sites version under
// sites-versions/<path sans .html>/<ts>.html; uploads under
// sites-versions/uploads/<path>/<ts>.<ext>. A missing source is not an
// error; there is nothing to preserve.
func backupIfExists(ws *workspace.Workspace, relPath string) error {
	src := ws.AbsPath(relPath)
	if !utils.FileExists(src) {
		return nil
	}

	ts := backupTimestamp(time.Now())
	var dst string
	if IsSitePath(relPath) {
		stem := strings.TrimSuffix(relPath, path.Ext(relPath))
		dst = filepath.Join(ws.VersionsDir, filepath.FromSlash(stem), ts+".html")
	} else {
		ext := path.Ext(relPath)
		dst = filepath.Join(ws.VersionsDir, uploadsVersionsDirName, filepath.FromSlash(relPath), ts+ext)
	}

	if err := utils.CopyFile(src, dst); err != nil {
		return fmt.Errorf("backup %s: %w", relPath, err)
	}
	slog.Debug("backed up", "path", relPath, "backup", dst)
	return nil
}

// moveToTrash relocates relPath under .trash preserving its structure.
// Rename is attempted first; cross-device setups fall back to copy+remove.
func moveToTrash(ws *workspace.Workspace, relPath string) error {
	src := ws.AbsPath(relPath)
	if !utils.FileExists(src) {
		return nil
	}

	dst := ws.TrashPath(relPath)
	if utils.FileExists(dst) {
		// keep the older trashed copy distinguishable
		dst += "." + backupTimestamp(time.Now())
	}
	if err := utils.EnsureParent(dst); err != nil {
		return fmt.Errorf("trash %s: %w", relPath, err)
	}

	if err := os.Rename(src, dst); err != nil {
		if err := utils.CopyFile(src, dst); err != nil {
			return fmt.Errorf("trash %s: %w", relPath, err)
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("trash %s: %w", relPath, err)
		}
	}
	slog.Info("moved to trash", "path", relPath)
	return nil
}
