package stage3

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListIsRepeatable(t *testing.T) {
	t.Parallel()

	src := sampleTree(t)
	out, _ := buildFile(t, src)

	first, err := List(context.Background(), out)
	require.NoError(t, err)
	second, err := List(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListFromStream(t *testing.T) {
	t.Parallel()

	src := sampleTree(t)
	out, _ := buildFile(t, src, BuildWithCompression(CompressionXz))
	want, err := List(context.Background(), out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	got, err := ListFrom(context.Background(), io.MultiReader(bytes.NewReader(data)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestListTruncated(t *testing.T) {
	t.Parallel()

	src := sampleTree(t)
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionXz} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			out, _ := buildFile(t, src, BuildWithCompression(c))
			data, err := os.ReadFile(out)
			require.NoError(t, err)

			cut := len(data) / 2
			if c == CompressionNone {
				// Cut inside a file body so the stream cannot end on a
				// record boundary.
				entries, err := List(context.Background(), out)
				require.NoError(t, err)
				for _, e := range entries {
					if e.Path == "bin/busybox" {
						cut = int(e.ContentOffset) + 10 //nolint:gosec // small test archive
					}
				}
			}
			_, err = ListFrom(context.Background(), bytes.NewReader(data[:cut]))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			assert.Equal(t, ExitFormat, ExitCode(err))
		})
	}
}

func TestListInvalidInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not an archive at all"), 0o644))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name  string
		path  string
		class error
	}{
		{name: "missing", path: filepath.Join(dir, "missing.stg3"), class: ErrInput},
		{name: "directory", path: dir, class: ErrInput},
		{name: "garbage", path: garbage, class: ErrFormat},
		{name: "empty", path: empty, class: ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := List(context.Background(), tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.class)
		})
	}
}

func TestListCanceled(t *testing.T) {
	t.Parallel()

	src := sampleTree(t)
	out, _ := buildFile(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := List(ctx, out)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReaderContent(t *testing.T) {
	t.Parallel()

	src := sampleTree(t)
	for _, c := range []Compression{CompressionNone, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			out, _ := buildFile(t, src, BuildWithCompression(c), BuildWithInlineLimit(8))
			r, err := Open(out)
			require.NoError(t, err)
			defer r.Close()

			files := 0
			for e, err := range r.Entries() {
				require.NoError(t, err)
				if e.Kind != KindRegular {
					content, err := io.ReadAll(r.Content())
					require.NoError(t, err)
					assert.Empty(t, content, e.Path)
					continue
				}
				// Every other file is left unread to exercise skipping.
				files++
				if files%2 == 0 {
					continue
				}
				content, err := io.ReadAll(r.Content())
				require.NoError(t, err)
				want, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(e.Path)))
				require.NoError(t, err)
				assert.Equal(t, want, content, e.Path)
			}
			assert.Equal(t, 6, files)
		})
	}
}

func TestReaderSkipsUnreadContent(t *testing.T) {
	t.Parallel()

	src := sampleTree(t)
	out, _ := buildFile(t, src, BuildWithCompression(CompressionGzip))

	r, err := Open(out)
	require.NoError(t, err)
	defer r.Close()

	var paths []string
	for e, err := range r.Entries() {
		require.NoError(t, err)
		paths = append(paths, e.Path)
		if e.Path == "bin/busybox" {
			// Read a few bytes only.
			buf := make([]byte, 4)
			_, err := io.ReadFull(r.Content(), buf)
			require.NoError(t, err)
			assert.Equal(t, "\x7fELF", string(buf))
		}
	}
	assert.Contains(t, paths, "var/empty")
	assert.Equal(t, ".", paths[0])
}

func TestReaderEntriesStopsEarly(t *testing.T) {
	t.Parallel()

	src := sampleTree(t)
	out, _ := buildFile(t, src)

	r, err := Open(out)
	require.NoError(t, err)
	defer r.Close()

	for e, err := range r.Entries() {
		require.NoError(t, err)
		if e.Path == "etc" {
			break
		}
	}
	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "etc/a", e.Path)
}

func TestReaderExhausted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := BuildTo(context.Background(), t.TempDir(), &buf, BuildWithCompression(CompressionGzip))
	require.NoError(t, err)

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, CompressionGzip, r.Compression())

	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, RootPath, e.Path)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
