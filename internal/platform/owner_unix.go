//go:build unix

package platform

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// FileOwner extracts UID and GID from file info on Unix systems.
func FileOwner(info fs.FileInfo) (uid, gid uint32) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Uid, stat.Gid
	}
	return 0, 0
}

// DeviceNumbers extracts the major and minor numbers of a device node.
func DeviceNumbers(info fs.FileInfo) (major, minor uint32) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		rdev := uint64(stat.Rdev) //nolint:unconvert,gosec // Rdev width differs per platform
		return unix.Major(rdev), unix.Minor(rdev)
	}
	return 0, 0
}
