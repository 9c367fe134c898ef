//go:build unix

package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// MakeFIFO creates a named pipe at path.
func MakeFIFO(t testing.TB, path string) {
	t.Helper()
	require.NoError(t, unix.Mkfifo(path, 0o644))
}
