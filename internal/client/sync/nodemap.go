package sync

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	stdsync "sync"

	json "github.com/goccy/go-json"
	"github.com/littleweb/sitebox/internal/client/workspace"
	"github.com/littleweb/sitebox/internal/utils"
)

const (
	nodeMapFileName   = "node-map.json"
	syncStateFileName = "sync-state.json"
)

// NodeID identifies a site document on the server. Uploads have no node id.
type NodeID int64

// NodeEntry is the local record for one site node. Inode is nil on
// filesystems that do not expose one; checksum then carries rename identity
// on its own.
type NodeEntry struct {
	Path     string  `json:"path"`
	Checksum string  `json:"checksum"`
	Inode    *uint64 `json:"inode,omitempty"`
}

// SyncState is the persisted watermark of the last successful reconcile.
type SyncState struct {
	LastSyncedAt int64 `json:"lastSyncedAt"`
}

// NodeMap is the durable nodeId -> local file association. It is the
// engine's memory across restarts; without it every reconcile would treat
// renames as delete+create pairs.
type NodeMap struct {
	mu      stdsync.Mutex
	entries map[NodeID]NodeEntry
	state   SyncState

	mapPath   string
	statePath string
}

func NewNodeMap(ws *workspace.Workspace) *NodeMap {
	return &NodeMap{
		entries:   make(map[NodeID]NodeEntry),
		mapPath:   filepath.Join(ws.MetaDir, nodeMapFileName),
		statePath: filepath.Join(ws.MetaDir, syncStateFileName),
	}
}

// Load reads both metadata files. Missing files mean a fresh workspace.
// A corrupt node map is logged and treated as empty rather than aborting
// sync; the next reconcile rebuilds associations from server state.
func (m *NodeMap) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data, err := os.ReadFile(m.mapPath); err == nil {
		entries, err := decodeNodeMap(data)
		if err != nil {
			slog.Warn("node map corrupt, starting empty", "path", m.mapPath, "error", err)
			entries = make(map[NodeID]NodeEntry)
		}
		m.entries = entries
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("node map read: %w", err)
	}

	if data, err := os.ReadFile(m.statePath); err == nil {
		var state SyncState
		if err := json.Unmarshal(data, &state); err != nil {
			slog.Warn("sync state corrupt, starting empty", "path", m.statePath, "error", err)
		} else {
			m.state = state
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("sync state read: %w", err)
	}

	return nil
}

// decodeNodeMap accepts both the current object form and the legacy form
// where each value was a bare path string.
func decodeNodeMap(data []byte) (map[NodeID]NodeEntry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	entries := make(map[NodeID]NodeEntry, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("node id %q: %w", key, err)
		}

		var entry NodeEntry
		if len(value) > 0 && value[0] == '"' {
			// legacy format: value is just the path
			var path string
			if err := json.Unmarshal(value, &path); err != nil {
				return nil, err
			}
			entry = NodeEntry{Path: path}
		} else if err := json.Unmarshal(value, &entry); err != nil {
			return nil, err
		}
		entries[NodeID(id)] = entry
	}
	return entries, nil
}

// Save persists the node map atomically.
func (m *NodeMap) Save() error {
	m.mu.Lock()
	raw := make(map[string]NodeEntry, len(m.entries))
	for id, entry := range m.entries {
		raw[strconv.FormatInt(int64(id), 10)] = entry
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("node map encode: %w", err)
	}
	return writeFileAtomic(m.mapPath, data)
}

// SaveState persists the sync watermark atomically.
func (m *NodeMap) SaveState(lastSyncedAt int64) error {
	m.mu.Lock()
	// the watermark only moves forward
	if lastSyncedAt > m.state.LastSyncedAt {
		m.state.LastSyncedAt = lastSyncedAt
	}
	state := m.state
	m.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("sync state encode: %w", err)
	}
	return writeFileAtomic(m.statePath, data)
}

// LastSyncedAt returns the persisted watermark, zero for a fresh workspace.
func (m *NodeMap) LastSyncedAt() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LastSyncedAt
}

// Get returns the entry for a node id.
func (m *NodeMap) Get(id NodeID) (NodeEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	return entry, ok
}

// Set records or replaces the entry for a node id.
func (m *NodeMap) Set(id NodeID, entry NodeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = entry
}

// Delete removes a node id.
func (m *NodeMap) Delete(id NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// ByPath finds the node id tracking relPath.
func (m *NodeMap) ByPath(relPath string) (NodeID, NodeEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.entries {
		if entry.Path == relPath {
			return id, entry, true
		}
	}
	return 0, NodeEntry{}, false
}

// ByIdentity finds the node whose recorded inode or checksum matches.
// Inode wins when available; checksum is the cross-platform fallback.
func (m *NodeMap) ByIdentity(inode *uint64, checksum string) (NodeID, NodeEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inode != nil {
		for id, entry := range m.entries {
			if entry.Inode != nil && *entry.Inode == *inode {
				return id, entry, true
			}
		}
	}
	if checksum != "" {
		for id, entry := range m.entries {
			if entry.Checksum == checksum {
				return id, entry, true
			}
		}
	}
	return 0, NodeEntry{}, false
}

// Snapshot returns a copy of all entries.
func (m *NodeMap) Snapshot() map[NodeID]NodeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[NodeID]NodeEntry, len(m.entries))
	for id, entry := range m.entries {
		out[id] = entry
	}
	return out
}

// Len returns the number of tracked nodes.
func (m *NodeMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// writeFileAtomic writes via a temp file in the same directory, fsyncs,
// then renames over the target. A crash mid-write leaves the old file
// intact, never a torn one.
func writeFileAtomic(path string, data []byte) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	return nil
}
