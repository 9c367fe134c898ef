package stage3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meigma/stage3/internal/stagetype"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "input", err: fmt.Errorf("%w: no such directory", ErrInput), want: ExitInput},
		{name: "format", err: fmt.Errorf("%w: bad magic", ErrFormat), want: ExitFormat},
		{name: "io", err: fmt.Errorf("%w: disk full", ErrIO), want: ExitIO},
		{name: "encoding", err: fmt.Errorf("%w: bad name", ErrEncoding), want: ExitEncoding},
		{name: "verification", err: fmt.Errorf("%w: checksum (1 paths)", ErrVerificationFailed), want: ExitVerificationFailed},
		{name: "entry error", err: stagetype.NewEntryError("etc/shadow", errors.New("permission denied")), want: ExitIO},
		{name: "entry encoding error", err: stagetype.NewEntryError("bad", ErrEncoding), want: ExitEncoding},
		{name: "content changed", err: stagetype.NewEntryError("log", ErrContentChanged), want: ExitIO},
		{name: "too many entries", err: fmt.Errorf("%w: %w", ErrInput, ErrTooManyEntries), want: ExitInput},
		{name: "canceled", err: context.Canceled, want: ExitFailure},
		{name: "unclassified", err: errors.New("boom"), want: ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionXz} {
		got, err := ParseCompression(c.String())
		assert.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("lz4")
	assert.ErrorIs(t, err, ErrInput)
}
