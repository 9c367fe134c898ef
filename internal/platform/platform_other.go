//go:build !unix

package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when a path expected to be a regular file turned
// out to be a symbolic link.
var ErrSymlink = errors.New("unexpected symbolic link")

// OpenFileNoFollow opens a file below root without following a symlink in
// the final path element. The check and the open are separate steps here,
// so a concurrent swap can slip through; the writer's digest check still
// catches changed content.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	return root.Open(name)
}

// FileOwner reports no owner; archives built here record uid and gid 0.
func FileOwner(fs.FileInfo) (uid, gid uint32) {
	return 0, 0
}

// DeviceNumbers reports no device numbers.
func DeviceNumbers(fs.FileInfo) (major, minor uint32) {
	return 0, 0
}
