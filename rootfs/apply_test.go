package rootfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/stage3/internal/stagetype"
)

func TestApplyDefaultLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, DefaultLayout().Apply(context.Background(), dir))

	for link, want := range map[string]string{
		"bin":        "usr/bin",
		"lib64":      "usr/lib64",
		"var/run":    "/run",
		"usr/bin/sh": "bash",
		"etc/mtab":   "/proc/self/mounts",
	} {
		got, err := os.Readlink(filepath.Join(dir, link))
		require.NoError(t, err, link)
		assert.Equal(t, want, got, link)
	}

	modes := map[string]fs.FileMode{
		"tmp":          fs.ModeDir | fs.ModeSticky | 0o777,
		"var/tmp":      fs.ModeDir | fs.ModeSticky | 0o777,
		"root":         fs.ModeDir | 0o700,
		"usr/lib":      fs.ModeDir | 0o755,
		"etc/shadow":   0o600,
		"etc/gshadow":  0o600,
		"etc/passwd":   0o644,
		"etc/hostname": 0o644,
	}
	for path, want := range modes {
		info, err := os.Lstat(filepath.Join(dir, path))
		require.NoError(t, err, path)
		assert.Equal(t, want, info.Mode(), path)
	}

	passwd, err := os.ReadFile(filepath.Join(dir, "etc/passwd"))
	require.NoError(t, err)
	assert.Contains(t, string(passwd), "root:x:0:0:root:/root:/usr/bin/bash\n")
	osRelease, err := os.ReadFile(filepath.Join(dir, "etc/os-release"))
	require.NoError(t, err)
	assert.Contains(t, string(osRelease), "ID=levitateos\n")
	_, err = os.Stat(filepath.Join(dir, "root/.bashrc"))
	assert.NoError(t, err)

	// Merged /usr: files placed through the link land in usr/bin.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "bash"), []byte("#!"), 0o755))
	_, err = os.Stat(filepath.Join(dir, "usr/bin/bash"))
	assert.NoError(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := DefaultLayout()
	require.NoError(t, l.Apply(context.Background(), dir))

	// Local edits survive a second run.
	hostname := filepath.Join(dir, "etc/hostname")
	require.NoError(t, os.WriteFile(hostname, []byte("custom\n"), 0o644))
	require.NoError(t, os.Chmod(filepath.Join(dir, "srv"), 0o750))

	require.NoError(t, l.Apply(context.Background(), dir))

	got, err := os.ReadFile(hostname)
	require.NoError(t, err)
	assert.Equal(t, "custom\n", string(got))
	info, err := os.Stat(filepath.Join(dir, "srv"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o750), info.Mode().Perm())
}

func TestApplyConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(t *testing.T, dir string)
		layout  Layout
	}{
		{
			name: "directory where a link belongs",
			prepare: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "keep"), []byte("x"), 0o644))
			},
			layout: Layout{Symlinks: []Symlink{{Path: "bin", Target: "usr/bin"}}},
		},
		{
			name: "link with another target",
			prepare: func(t *testing.T, dir string) {
				require.NoError(t, os.Symlink("elsewhere", filepath.Join(dir, "bin")))
			},
			layout: Layout{Symlinks: []Symlink{{Path: "bin", Target: "usr/bin"}}},
		},
		{
			name: "file where a directory belongs",
			prepare: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "etc"), []byte("x"), 0o644))
			},
			layout: Layout{Dirs: []Dir{{Path: "etc/skel"}}},
		},
		{
			name: "directory where a file belongs",
			prepare: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "etc/passwd"), 0o755))
			},
			layout: Layout{Files: []File{{Path: "etc/passwd", Content: "root:x:0:0::/root:/bin/sh\n"}}},
		},
		{
			name: "dangling link where a directory belongs",
			prepare: func(t *testing.T, dir string) {
				require.NoError(t, os.Symlink("missing", filepath.Join(dir, "opt")))
			},
			layout: Layout{Dirs: []Dir{{Path: "opt"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			tt.prepare(t, dir)

			err := tt.layout.Apply(context.Background(), dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConflict)
			assert.ErrorIs(t, err, stagetype.ErrInput)
		})
	}
}

func TestApplyKeepsExistingDirectoryContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "keep"), []byte("x"), 0o644))

	err := DefaultLayout().Apply(context.Background(), dir)
	require.ErrorIs(t, err, ErrConflict)

	_, err = os.Stat(filepath.Join(dir, "bin", "keep"))
	assert.NoError(t, err, "conflicting directory must not be removed")
}

func TestApplyInvalidTarget(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	for _, dir := range []string{filepath.Join(t.TempDir(), "missing"), file} {
		err := DefaultLayout().Apply(context.Background(), dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, stagetype.ErrInput)
	}
}

func TestApplyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	err := DefaultLayout().Apply(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
