//go:build windows

package sync

// fileInode always returns nil on windows; rename identity falls back to
// checksum matching.
func fileInode(path string) *uint64 {
	return nil
}
