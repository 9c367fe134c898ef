package walk

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/stage3/internal/stagetype"
	"github.com/meigma/stage3/internal/testutil"
)

type walkResult struct {
	entries []stagetype.Entry
	errs    []*stagetype.EntryError
}

func (r walkResult) paths() []string {
	paths := make([]string, len(r.entries))
	for i := range r.entries {
		paths[i] = r.entries[i].Path
	}
	return paths
}

func walkAll(t *testing.T, dir string, opts ...Option) walkResult {
	t.Helper()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { root.Close() })

	var res walkResult
	w := New(context.Background(), root, opts...)
	for {
		e, err := w.Next()
		if err == io.EOF {
			return res
		}
		var entryErr *stagetype.EntryError
		if errors.As(err, &entryErr) {
			res.errs = append(res.errs, entryErr)
			continue
		}
		require.NoError(t, err)
		res.entries = append(res.entries, *e)
	}
}

func TestWalkOrder(t *testing.T) {
	t.Parallel()

	dir := testutil.NewTree(t,
		testutil.File("b", "b", 0o644),
		testutil.File("a/z", "z", 0o644),
		testutil.File("a/B", "B", 0o644),
		testutil.Dir("a/m", 0o755),
		testutil.File("a/m/x", "x", 0o644),
		testutil.File("A", "A", 0o644),
		testutil.File("a.txt", "dot", 0o644),
	)

	res := walkAll(t, dir)
	require.Empty(t, res.errs)
	// Byte-wise order: uppercase before lowercase, "a" before "a.txt" since
	// children are sorted within their own directory.
	assert.Equal(t, []string{".", "A", "a", "a/B", "a/m", "a/m/x", "a/z", "a.txt", "b"}, res.paths())

	again := walkAll(t, dir)
	assert.Equal(t, res.paths(), again.paths())
}

func TestWalkEmptyTree(t *testing.T) {
	t.Parallel()

	res := walkAll(t, t.TempDir())
	require.Empty(t, res.errs)
	require.Len(t, res.entries, 1)
	assert.Equal(t, stagetype.RootPath, res.entries[0].Path)
	assert.Equal(t, stagetype.KindDirectory, res.entries[0].Kind)
}

func TestWalkMetadata(t *testing.T) {
	t.Parallel()

	dir := testutil.NewTree(t,
		testutil.Dir("bin", 0o755),
		testutil.File("bin/tool", "#!/bin/sh\n", 0o755),
		testutil.File("bin/su", "suid", 0o4755),
		testutil.Dir("tmp", 0o1777),
		testutil.Symlink("passwd", "../../etc/passwd"),
		testutil.Symlink("dangling", "does/not/exist"),
		testutil.FIFO("pipe", 0o600),
	)

	res := walkAll(t, dir)
	require.Empty(t, res.errs)
	byPath := make(map[string]stagetype.Entry)
	for _, e := range res.entries {
		byPath[e.Path] = e
	}

	tool := byPath["bin/tool"]
	assert.Equal(t, stagetype.KindRegular, tool.Kind)
	assert.Equal(t, uint32(0o755), tool.Mode)
	assert.Equal(t, uint64(len("#!/bin/sh\n")), tool.Size)
	assert.Equal(t, uint32(os.Getuid()), tool.UID) //nolint:gosec // uid fits
	assert.True(t, testutil.FixedTime.Equal(tool.ModTime))

	assert.Equal(t, uint32(0o4755), byPath["bin/su"].Mode)
	assert.Equal(t, uint32(0o1777), byPath["tmp"].Mode)

	link := byPath["passwd"]
	assert.Equal(t, stagetype.KindSymlink, link.Kind)
	assert.Equal(t, "../../etc/passwd", link.LinkTarget)
	assert.Zero(t, link.Size)
	assert.Equal(t, "does/not/exist", byPath["dangling"].LinkTarget)

	pipe := byPath["pipe"]
	assert.Equal(t, stagetype.KindOther, pipe.Kind)
	assert.Equal(t, stagetype.SpecialFIFO, pipe.Special)
	assert.Zero(t, pipe.Size)
}

func TestWalkDoesNotFollowSymlinkedDirectories(t *testing.T) {
	t.Parallel()

	outside := testutil.NewTree(t, testutil.File("secret", "nope", 0o600))
	dir := testutil.NewTree(t,
		testutil.Dir("real", 0o755),
		testutil.File("real/inner", "in", 0o644),
		testutil.Symlink("loop", "."),
		testutil.Symlink("escape", outside),
	)

	res := walkAll(t, dir)
	require.Empty(t, res.errs)
	assert.Equal(t, []string{".", "escape", "loop", "real", "real/inner"}, res.paths())
}

func TestWalkExclude(t *testing.T) {
	t.Parallel()

	dir := testutil.NewTree(t,
		testutil.File("proc/1/status", "x", 0o644),
		testutil.File("etc/hostname", "h", 0o644),
		testutil.File("sys/kernel", "k", 0o644),
	)

	res := walkAll(t, dir, WithExclude(func(path string) bool {
		return path == "proc" || strings.HasPrefix(path, "sys/")
	}))
	require.Empty(t, res.errs)
	assert.Equal(t, []string{".", "etc", "etc/hostname", "sys"}, res.paths())
}

func TestWalkUnreadableDirectory(t *testing.T) {
	t.Parallel()
	testutil.SkipIfPrivileged(t)

	dir := testutil.NewTree(t,
		testutil.File("locked/hidden", "h", 0o644),
		testutil.Dir("locked", 0o000),
		testutil.File("open", "o", 0o644),
	)

	res := walkAll(t, dir)
	assert.Equal(t, []string{".", "locked", "open"}, res.paths())
	require.Len(t, res.errs, 1)
	assert.Equal(t, "locked", res.errs[0].Path)
	assert.ErrorIs(t, res.errs[0], fs.ErrPermission)
	assert.ErrorIs(t, res.errs[0], stagetype.ErrIO)
}

func TestWalkNonUTF8Name(t *testing.T) {
	t.Parallel()

	dir := testutil.NewTree(t, testutil.File("ok", "ok", 0o644))
	bad := filepath.Join(dir, "bad\xffname")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}

	res := walkAll(t, dir)
	assert.Equal(t, []string{".", "ok"}, res.paths())
	require.Len(t, res.errs, 1)
	assert.ErrorIs(t, res.errs[0], stagetype.ErrEncoding)
}

func TestWalkCanceled(t *testing.T) {
	t.Parallel()

	root, err := os.OpenRoot(t.TempDir())
	require.NoError(t, err)
	defer root.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(ctx, root).Next()
	assert.ErrorIs(t, err, context.Canceled)
}
