package sync

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/littleweb/sitebox/internal/client/workspace"
)

// defaultIgnorePatterns are paths the engine never syncs. Gitignore syntax;
// the dotfile rule covers .sync-meta, .trash, editor droppings and any
// hidden file a tool sprays into the root.
var defaultIgnorePatterns = []string{
	".*",
	workspace.MetaDirName + "/",
	workspace.TrashDirName + "/",
	workspace.VersionsDirName + "/",
	"node_modules/",
	"tailwindcss/",
	".DS_Store",
	"Thumbs.db",
	"*.tmp",
	"*.swp",
	"*~",
}

// IgnoreList decides whether a relative path participates in sync.
type IgnoreList struct {
	matcher *ignore.GitIgnore
}

func NewIgnoreList() *IgnoreList {
	return &IgnoreList{matcher: ignore.CompileIgnoreLines(defaultIgnorePatterns...)}
}

// Ignored reports whether relPath (forward slashes) is excluded from sync.
// A path is excluded if any of its segments match, so files nested under an
// ignored directory are excluded too.
func (l *IgnoreList) Ignored(relPath string) bool {
	if relPath == "" {
		return true
	}
	if l.matcher.MatchesPath(relPath) {
		return true
	}
	// MatchesPath on "a/b/c" does not apply the "dir/" rules to
	// intermediate segments, so check each ancestor explicitly.
	segments := strings.Split(relPath, "/")
	for i := 1; i < len(segments); i++ {
		prefix := strings.Join(segments[:i], "/") + "/"
		if l.matcher.MatchesPath(prefix) {
			return true
		}
	}
	return false
}

// IsSitePath reports whether relPath is synced as a site (HTML document).
func IsSitePath(relPath string) bool {
	return strings.HasSuffix(strings.ToLower(relPath), ".html")
}
