package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/littleweb/sitebox/internal/utils"
)

const (
	MetaDirName     = ".sync-meta"
	TrashDirName    = ".trash"
	VersionsDirName = "sites-versions"

	lockFileName = "lock"
)

// Workspace is the on-disk layout of a sync root. All engine metadata lives
// under .sync-meta; server-side deletes are realized under .trash; backups
// of overwritten content land under sites-versions.
type Workspace struct {
	Root        string
	MetaDir     string
	TrashDir    string
	VersionsDir string

	lock *flock.Flock
}

func New(root string) (*Workspace, error) {
	resolved, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}

	return &Workspace{
		Root:        resolved,
		MetaDir:     filepath.Join(resolved, MetaDirName),
		TrashDir:    filepath.Join(resolved, TrashDirName),
		VersionsDir: filepath.Join(resolved, VersionsDirName),
	}, nil
}

// Bootstrap creates the layout and takes the single-instance lock. A second
// client on the same root is refused rather than racing the first.
func (w *Workspace) Bootstrap() error {
	for _, dir := range []string{w.Root, w.MetaDir, w.TrashDir, w.VersionsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("workspace bootstrap: %w", err)
		}
	}

	w.lock = flock.New(filepath.Join(w.MetaDir, lockFileName))
	locked, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("workspace lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("workspace %s is in use by another sitebox instance", w.Root)
	}

	return nil
}

// Close releases the instance lock.
func (w *Workspace) Close() error {
	if w.lock != nil {
		return w.lock.Unlock()
	}
	return nil
}

// AbsPath converts a slash-relative path to an absolute host path.
func (w *Workspace) AbsPath(relPath string) string {
	return filepath.Join(w.Root, filepath.FromSlash(relPath))
}

// RelPath converts an absolute host path into a slash-relative path inside
// the root; ok is false for paths outside the root.
func (w *Workspace) RelPath(absPath string) (string, bool) {
	rel, err := filepath.Rel(w.Root, absPath)
	if err != nil {
		return "", false
	}
	rel = NormPath(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}

// TrashPath returns where a server-deleted file lands, preserving its
// original relative path structure.
func (w *Workspace) TrashPath(relPath string) string {
	return filepath.Join(w.TrashDir, filepath.FromSlash(relPath))
}

// NormPath normalizes a path to forward slashes. The wire protocol and all
// engine-internal keys use `/` exclusively, independent of the host OS.
func NormPath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	return strings.TrimPrefix(path, "/")
}
