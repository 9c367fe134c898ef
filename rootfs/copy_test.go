package rootfs

import (
	"context"
	"debug/elf"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/stage3/internal/stagetype"
	"github.com/meigma/stage3/internal/testutil"
)

func sourceRoot(t *testing.T) string {
	t.Helper()
	return testutil.NewTree(t,
		testutil.File("usr/bin/ls", "ls binary", 0o755),
		testutil.File("usr/bin/su", "su binary", 0o4755),
		testutil.File("usr/bin/unrelated", "x", 0o755),
		testutil.Dir("usr/lib/udev/rules.d", 0o755),
		testutil.File("usr/lib/udev/rules.d/60-block.rules", "KERNEL==\"sd*\"\n", 0o644),
		testutil.Symlink("usr/lib/udev/rules.d/61-link.rules", "60-block.rules"),
		testutil.File("usr/lib/udev/rules.d/hwdb/20-pci.hwdb", "pci\n", 0o600),
		testutil.File("usr/share/zoneinfo/UTC", "TZif2", 0o644),
		testutil.File("etc/hostname", "source\n", 0o644),
	)
}

func TestApplyCopies(t *testing.T) {
	t.Parallel()

	src := sourceRoot(t)
	dir := t.TempDir()
	l := &Layout{
		Files: []File{{Path: "etc/hostname", Content: "staged\n"}},
		Copies: []Copy{
			{From: "usr/bin", Names: []string{"ls", "su", "missing"}, Optional: true},
			{From: "usr/lib/udev/rules.d"},
			{From: "usr/share/zoneinfo/UTC", To: "etc/zoneinfo/UTC"},
			{From: "etc/hostname"},
		},
	}
	require.NoError(t, l.Apply(context.Background(), dir, ApplyWithSource(src)))

	got, err := os.ReadFile(filepath.Join(dir, "usr/bin/ls"))
	require.NoError(t, err)
	assert.Equal(t, "ls binary", string(got))

	modes := map[string]fs.FileMode{
		"usr/bin/ls":                            0o755,
		"usr/bin/su":                            fs.ModeSetuid | 0o755,
		"usr/lib/udev/rules.d":                  fs.ModeDir | 0o755,
		"usr/lib/udev/rules.d/60-block.rules":   0o644,
		"usr/lib/udev/rules.d/hwdb/20-pci.hwdb": 0o600,
		"usr/lib/udev/rules.d/61-link.rules":    fs.ModeSymlink,
		"etc/zoneinfo/UTC":                      0o644,
	}
	for p, want := range modes {
		info, err := os.Lstat(filepath.Join(dir, p))
		require.NoError(t, err, p)
		if want&fs.ModeSymlink != 0 {
			assert.Equal(t, fs.ModeSymlink, info.Mode().Type(), p)
			continue
		}
		assert.Equal(t, want, info.Mode(), p)
	}

	target, err := os.Readlink(filepath.Join(dir, "usr/lib/udev/rules.d/61-link.rules"))
	require.NoError(t, err)
	assert.Equal(t, "60-block.rules", target)

	_, err = os.Lstat(filepath.Join(dir, "usr/bin/unrelated"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	// Files the layout writes take precedence over the source.
	got, err = os.ReadFile(filepath.Join(dir, "etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, "staged\n", string(got))

	// A second run keeps everything in place.
	require.NoError(t, l.Apply(context.Background(), dir, ApplyWithSource(src)))
}

func TestApplyCopyErrors(t *testing.T) {
	t.Parallel()

	src := sourceRoot(t)

	tests := []struct {
		name     string
		prepare  func(t *testing.T, dir string)
		copies   []Copy
		source   string
		wantErrs []error
	}{
		{
			name:     "missing source entry",
			copies:   []Copy{{From: "usr/bin", Names: []string{"missing"}}},
			source:   src,
			wantErrs: []error{stagetype.ErrInput},
		},
		{
			name:     "missing source root",
			copies:   []Copy{{From: "usr/bin"}},
			source:   filepath.Join(src, "nope"),
			wantErrs: []error{stagetype.ErrInput},
		},
		{
			name: "directory where a file belongs",
			prepare: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "usr/bin/ls"), 0o755))
			},
			copies:   []Copy{{From: "usr/bin", Names: []string{"ls"}}},
			source:   src,
			wantErrs: []error{stagetype.ErrInput, ErrConflict},
		},
		{
			name: "link with another target",
			prepare: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "usr/lib/udev/rules.d"), 0o755))
				require.NoError(t, os.Symlink("other", filepath.Join(dir, "usr/lib/udev/rules.d/61-link.rules")))
			},
			copies:   []Copy{{From: "usr/lib/udev/rules.d"}},
			source:   src,
			wantErrs: []error{stagetype.ErrInput, ErrConflict},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if tt.prepare != nil {
				tt.prepare(t, dir)
			}
			l := &Layout{Copies: tt.copies}
			err := l.Apply(context.Background(), dir, ApplyWithSource(tt.source))
			require.Error(t, err)
			for _, want := range tt.wantErrs {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestApplyCopiesWithoutSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := &Layout{Copies: []Copy{{From: "usr/bin", Names: []string{"ls"}}}}
	require.NoError(t, l.Apply(context.Background(), dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// hostDynamicBinary returns a dynamically linked ELF executable of the
// host together with the sonames it needs.
func hostDynamicBinary(t *testing.T) (string, []string, string) {
	t.Helper()
	for _, p := range []string{"/bin/sh", "/usr/bin/env", "/bin/ls", "/usr/bin/ls"} {
		ef, err := elf.Open(p)
		if err != nil {
			continue
		}
		needed, err := ef.ImportedLibraries()
		var interp string
		for _, prog := range ef.Progs {
			if prog.Type == elf.PT_INTERP {
				b := make([]byte, prog.Filesz)
				if _, err := prog.ReadAt(b, 0); err == nil {
					interp = path.Base(strings.TrimRight(string(b), "\x00"))
				}
			}
		}
		ef.Close()
		if err == nil && len(needed) > 0 && interp != "" {
			return p, needed, interp
		}
	}
	t.Skip("no dynamically linked ELF executable on this host")
	return "", nil, ""
}

func TestApplyCopiesSharedLibraries(t *testing.T) {
	t.Parallel()

	bin, needed, interp := hostDynamicBinary(t)
	content, err := os.ReadFile(bin)
	require.NoError(t, err)

	// Needed libraries live in usr/lib64 and the interpreter in lib; the
	// library stand-ins are not ELF files and need nothing further.
	nodes := []testutil.Node{
		testutil.File("usr/bin/prog", string(content), 0o755),
		testutil.File("lib/"+interp, "interpreter", 0o755),
	}
	for _, name := range needed {
		if name != interp {
			nodes = append(nodes, testutil.File("usr/lib64/"+name, "library "+name, 0o755))
		}
	}
	src := testutil.NewTree(t, nodes...)

	dir := t.TempDir()
	l := &Layout{Copies: []Copy{{From: "usr/bin", Names: []string{"prog"}, Libs: true}}}
	require.NoError(t, l.Apply(context.Background(), dir, ApplyWithSource(src)))

	for _, name := range needed {
		if name == interp {
			continue
		}
		got, err := os.ReadFile(filepath.Join(dir, "usr/lib64", name))
		require.NoError(t, err, name)
		assert.Equal(t, "library "+name, string(got))
	}
	got, err := os.ReadFile(filepath.Join(dir, "usr/lib", interp))
	require.NoError(t, err)
	assert.Equal(t, "interpreter", string(got))
}

func TestStagingLibDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir  string
		want string
	}{
		{dir: "lib64", want: "usr/lib64"},
		{dir: "lib", want: "usr/lib"},
		{dir: "lib/x86_64-linux-gnu", want: "usr/lib/x86_64-linux-gnu"},
		{dir: "usr/lib64", want: "usr/lib64"},
		{dir: "usr/lib64/systemd", want: "usr/lib64/systemd"},
		{dir: "libexec", want: "libexec"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stagingLibDir(tt.dir), tt.dir)
	}
}
