package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/stage3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStageBuildListVerify(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	_, err := run(t, "stage", staging)
	require.NoError(t, err)

	outDir := t.TempDir()
	out, err := run(t, "build", "--deterministic", "-c", "gzip", "-x", "/proc", staging, outDir+string(filepath.Separator))
	require.NoError(t, err)
	archive := filepath.Join(outDir, "stage3.stg3.gz")
	assert.Contains(t, out, "wrote "+archive)

	out, err = run(t, "list", archive)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, ".", lines[0])
	assert.Contains(t, lines, "bin -> usr/bin")
	assert.Contains(t, lines, "etc/shadow")
	assert.NotContains(t, lines, "proc")

	out, err = run(t, "list", "--long", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "-rw------- ")
	assert.Contains(t, out, "dtrwxrwxrwx ")

	out, err = run(t, "verify", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "checksum")
	assert.NotContains(t, out, "FAILED")
}

func TestBuildIntoExistingDirectory(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "hostname"), []byte("h\n"), 0o644))
	outDir := t.TempDir()

	_, err := run(t, "build", "-c", "none", src, outDir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "stage3.stg3"))
	assert.NoError(t, err)
}

func TestExitCodes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.stg3")
	require.NoError(t, os.WriteFile(garbage, []byte("garbage"), 0o644))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "missing source", args: []string{"build", filepath.Join(dir, "missing"), dir}, want: stage3.ExitInput},
		{name: "bad compression", args: []string{"build", "-c", "lz4", dir, dir}, want: stage3.ExitInput},
		{name: "missing archive", args: []string{"verify", filepath.Join(dir, "missing.stg3")}, want: stage3.ExitInput},
		{name: "malformed archive", args: []string{"list", garbage}, want: stage3.ExitFormat},
		{name: "stage without dir", args: []string{"stage"}, want: stage3.ExitInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, stage3.ExitCode(err))
		})
	}
}

func TestStagePrint(t *testing.T) {
	t.Parallel()

	out, err := run(t, "stage", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "target: usr/bin")

	layout := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(layout, []byte("dirs:\n  - path: srv/www\n"), 0o644))
	staging := t.TempDir()
	_, err = run(t, "stage", "--layout", layout, staging)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(staging, "srv/www"))
	assert.NoError(t, err)
}

func TestStageFromSource(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "usr/lib/tmpfiles.d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "usr/lib/tmpfiles.d/tmp.conf"), []byte("q /tmp 1777\n"), 0o644))

	staging := t.TempDir()
	_, err := run(t, "stage", "--from", source, staging)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(staging, "usr/lib/tmpfiles.d/tmp.conf"))
	require.NoError(t, err)
	assert.Equal(t, "q /tmp 1777\n", string(got))
}
