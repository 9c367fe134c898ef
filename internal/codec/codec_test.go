package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/stage3/internal/stagetype"
)

var allCompressions = []stagetype.Compression{
	stagetype.CompressionNone,
	stagetype.CompressionGzip,
	stagetype.CompressionZstd,
	stagetype.CompressionXz,
}

func compress(t *testing.T, c stagetype.Compression, data []byte, opts ...WriterOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, c, opts...)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("STG3 stage3 archive payload "), 4096)
	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			compressed := compress(t, c, data)
			r, detected, err := NewReader(bytes.NewReader(compressed))
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, c, detected)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestDeterministicOutput(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0, 1, 2, 3, 4, 5, 6, 7}, 64<<10)
	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			a := compress(t, c, data, WithDeterministic(true))
			b := compress(t, c, data, WithDeterministic(true))
			assert.Equal(t, a, b)
		})
	}
}

func TestNewWriterLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		c       stagetype.Compression
		level   int
		wantErr bool
	}{
		{name: "zstd default", c: stagetype.CompressionZstd, level: 0},
		{name: "zstd max", c: stagetype.CompressionZstd, level: 19},
		{name: "zstd too high", c: stagetype.CompressionZstd, level: 23, wantErr: true},
		{name: "gzip best", c: stagetype.CompressionGzip, level: 9},
		{name: "gzip too high", c: stagetype.CompressionGzip, level: 10, wantErr: true},
		{name: "xz default", c: stagetype.CompressionXz, level: 0},
		{name: "xz fastest", c: stagetype.CompressionXz, level: 1},
		{name: "xz best", c: stagetype.CompressionXz, level: 9},
		{name: "xz too high", c: stagetype.CompressionXz, level: 10, wantErr: true},
		{name: "xz negative", c: stagetype.CompressionXz, level: -1, wantErr: true},
		{name: "none with level", c: stagetype.CompressionNone, level: 3, wantErr: true},
		{name: "unknown", c: stagetype.Compression(42), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, err := NewWriter(io.Discard, tt.c, WithLevel(tt.level))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, stagetype.ErrInput)
				return
			}
			require.NoError(t, err)
			require.NoError(t, w.Close())
		})
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header []byte
		want   stagetype.Compression
	}{
		{name: "zstd", header: []byte{0x28, 0xB5, 0x2F, 0xFD, 0x00, 0x00}, want: stagetype.CompressionZstd},
		{name: "gzip", header: []byte{0x1F, 0x8B, 0x08}, want: stagetype.CompressionGzip},
		{name: "xz", header: []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, want: stagetype.CompressionXz},
		{name: "raw", header: []byte("STG3\x01"), want: stagetype.CompressionNone},
		{name: "short", header: []byte{0x28}, want: stagetype.CompressionNone},
		{name: "empty", header: nil, want: stagetype.CompressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Detect(tt.header))
		})
	}
}

func TestTruncatedStreamIsFormatError(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("abcdefgh"), 8192)
	for _, c := range []stagetype.Compression{stagetype.CompressionGzip, stagetype.CompressionZstd, stagetype.CompressionXz} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			compressed := compress(t, c, data)
			truncated := compressed[:len(compressed)/2]

			r, _, err := NewReader(bytes.NewReader(truncated))
			if err == nil {
				_, err = io.ReadAll(r)
				r.Close()
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, stagetype.ErrFormat)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestSourceErrorIsIOError(t *testing.T) {
	t.Parallel()

	_, _, err := NewReader(failingReader{})
	require.Error(t, err)
	assert.ErrorIs(t, err, stagetype.ErrIO)
}
