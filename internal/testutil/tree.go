// Package testutil builds source trees and damaged streams for tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// NodeKind selects what a Node creates.
type NodeKind int

const (
	NodeDir NodeKind = iota
	NodeFile
	NodeSymlink
	NodeFIFO
)

// Node describes one object of a test tree.
type Node struct {
	Path    string
	Kind    NodeKind
	Content string
	Target  string
	Mode    fs.FileMode
}

// Dir returns a directory node.
func Dir(path string, mode fs.FileMode) Node {
	return Node{Path: path, Kind: NodeDir, Mode: mode}
}

// File returns a regular file node.
func File(path, content string, mode fs.FileMode) Node {
	return Node{Path: path, Kind: NodeFile, Content: content, Mode: mode}
}

// Symlink returns a symbolic link node. The target is stored verbatim.
func Symlink(path, target string) Node {
	return Node{Path: path, Kind: NodeSymlink, Target: target}
}

// FIFO returns a named pipe node.
func FIFO(path string, mode fs.FileMode) Node {
	return Node{Path: path, Kind: NodeFIFO, Mode: mode}
}

// FixedTime is the modification time WriteTree applies to every node that
// supports it.
var FixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// WriteTree creates nodes below dir. Missing parents are created with mode
// 0755. Modes are applied after all content is written, deepest paths first,
// so read-only directories can still be populated.
func WriteTree(t testing.TB, dir string, nodes ...Node) {
	t.Helper()

	for _, n := range nodes {
		p := filepath.Join(dir, filepath.FromSlash(n.Path))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		switch n.Kind {
		case NodeDir:
			require.NoError(t, os.MkdirAll(p, 0o755))
		case NodeFile:
			require.NoError(t, os.WriteFile(p, []byte(n.Content), 0o644))
		case NodeSymlink:
			require.NoError(t, os.Symlink(n.Target, p))
		case NodeFIFO:
			MakeFIFO(t, p)
		}
	}

	ordered := slices.Clone(nodes)
	slices.SortFunc(ordered, func(a, b Node) int {
		return len(b.Path) - len(a.Path)
	})
	for _, n := range ordered {
		if n.Kind == NodeSymlink {
			continue
		}
		p := filepath.Join(dir, filepath.FromSlash(n.Path))
		mode := n.Mode
		if mode == 0 {
			mode = 0o644
			if n.Kind == NodeDir {
				mode = 0o755
			}
		}
		require.NoError(t, os.Chmod(p, mode))
		require.NoError(t, os.Chtimes(p, FixedTime, FixedTime))
	}
}

// NewTree creates a temporary directory populated with nodes.
func NewTree(t testing.TB, nodes ...Node) string {
	t.Helper()
	dir := t.TempDir()
	WriteTree(t, dir, nodes...)
	t.Cleanup(func() {
		// Restore write permission so TempDir cleanup can remove the tree.
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error { //nolint:errcheck // best effort
			if err == nil && d.IsDir() {
				_ = os.Chmod(path, 0o755) //nolint:errcheck // best effort
			}
			return nil
		})
	})
	return dir
}

// SkipIfPrivileged skips tests that rely on permission checks, which do not
// apply to the superuser.
func SkipIfPrivileged(t testing.TB) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
}
