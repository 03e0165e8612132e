package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/littleweb/sitebox/internal/client/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNodeMap(t *testing.T) *NodeMap {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Bootstrap())
	t.Cleanup(func() { ws.Close() })
	return NewNodeMap(ws)
}

func TestNodeMapRoundTrip(t *testing.T) {
	m := testNodeMap(t)

	ino := uint64(42)
	m.Set(7, NodeEntry{Path: "blog/intro.html", Checksum: "abcd1234abcd1234", Inode: &ino})
	m.Set(9, NodeEntry{Path: "about.html", Checksum: "ffff0000ffff0000"})
	require.NoError(t, m.Save())
	require.NoError(t, m.SaveState(1700000000000))

	reloaded := &NodeMap{
		entries:   map[NodeID]NodeEntry{},
		mapPath:   m.mapPath,
		statePath: m.statePath,
	}
	require.NoError(t, reloaded.Load())

	entry, ok := reloaded.Get(7)
	require.True(t, ok)
	assert.Equal(t, "blog/intro.html", entry.Path)
	require.NotNil(t, entry.Inode)
	assert.Equal(t, uint64(42), *entry.Inode)

	entry, ok = reloaded.Get(9)
	require.True(t, ok)
	assert.Nil(t, entry.Inode)

	assert.Equal(t, int64(1700000000000), reloaded.LastSyncedAt())
}

func TestNodeMapLegacyFormat(t *testing.T) {
	m := testNodeMap(t)

	legacy := []byte(`{"3":"old-site.html","5":{"path":"new.html","checksum":"aa"}}`)
	require.NoError(t, os.WriteFile(m.mapPath, legacy, 0o644))
	require.NoError(t, m.Load())

	entry, ok := m.Get(3)
	require.True(t, ok)
	assert.Equal(t, "old-site.html", entry.Path)
	assert.Empty(t, entry.Checksum)

	entry, ok = m.Get(5)
	require.True(t, ok)
	assert.Equal(t, "aa", entry.Checksum)
}

func TestNodeMapCorruptStartsEmpty(t *testing.T) {
	m := testNodeMap(t)

	require.NoError(t, os.WriteFile(m.mapPath, []byte("{not json"), 0o644))
	require.NoError(t, m.Load())
	assert.Zero(t, m.Len())
}

func TestNodeMapMissingFilesAreFresh(t *testing.T) {
	m := testNodeMap(t)
	require.NoError(t, m.Load())
	assert.Zero(t, m.Len())
	assert.Zero(t, m.LastSyncedAt())
}

func TestWatermarkOnlyMovesForward(t *testing.T) {
	m := testNodeMap(t)

	require.NoError(t, m.SaveState(2000))
	require.NoError(t, m.SaveState(1000))
	assert.Equal(t, int64(2000), m.LastSyncedAt())
}

func TestByIdentityPrefersInode(t *testing.T) {
	m := testNodeMap(t)

	ino1, ino2 := uint64(1), uint64(2)
	m.Set(1, NodeEntry{Path: "a.html", Checksum: "same", Inode: &ino1})
	m.Set(2, NodeEntry{Path: "b.html", Checksum: "same", Inode: &ino2})

	id, _, ok := m.ByIdentity(&ino2, "same")
	require.True(t, ok)
	assert.Equal(t, NodeID(2), id)

	// checksum fallback when no inode matches
	id, _, ok = m.ByIdentity(nil, "same")
	require.True(t, ok)
	assert.Contains(t, []NodeID{1, 2}, id)

	_, _, ok = m.ByIdentity(nil, "other")
	assert.False(t, ok)
}

func TestByPath(t *testing.T) {
	m := testNodeMap(t)
	m.Set(4, NodeEntry{Path: "x.html", Checksum: "cc"})

	id, entry, ok := m.ByPath("x.html")
	require.True(t, ok)
	assert.Equal(t, NodeID(4), id)
	assert.Equal(t, "cc", entry.Checksum)

	_, _, ok = m.ByPath("y.html")
	assert.False(t, ok)
}

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	target := filepath.Join(t.TempDir(), "deep", "nested", "file.json")
	require.NoError(t, writeFileAtomic(target, []byte("data")))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))

	// overwrite leaves no temp droppings behind
	require.NoError(t, writeFileAtomic(target, []byte("data2")))
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
