//go:build !windows

package sync

import (
	"os"
	"syscall"
)

// fileInode returns the inode of path, nil when unavailable. Inodes give a
// stable file identity across renames on unix filesystems.
func fileInode(path string) *uint64 {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	ino := uint64(stat.Ino)
	return &ino
}
