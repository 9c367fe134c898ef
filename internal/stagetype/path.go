package stagetype

import (
	"fmt"
	"io/fs"
	"strings"
	"unicode/utf8"
)

// ValidatePath checks that p can be stored as an archive path: valid UTF-8,
// no NUL bytes, and accepted by fs.ValidPath (slash-separated, unrooted, no
// empty, "." or ".." elements except the root "." itself).
//
// Non-UTF-8 paths are rejected rather than escaped.
func ValidatePath(p string) error {
	if !utf8.ValidString(p) {
		return fmt.Errorf("%w: path is not valid UTF-8: %q", ErrEncoding, p)
	}
	if strings.IndexByte(p, 0) >= 0 {
		return fmt.Errorf("%w: path contains NUL: %q", ErrEncoding, p)
	}
	if !fs.ValidPath(p) {
		return fmt.Errorf("%w: invalid archive path: %q", ErrEncoding, p)
	}
	return nil
}

// Parent returns the parent directory of an archive path. The parent of a
// top-level entry is RootPath; the root has no parent and returns "".
func Parent(p string) string {
	if p == RootPath || p == "" {
		return ""
	}
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return RootPath
}

// Join joins a directory archive path and a child name.
func Join(dir, name string) string {
	if dir == RootPath || dir == "" {
		return name
	}
	return dir + "/" + name
}
