//go:build !unix

package testutil

import "testing"

// MakeFIFO skips the test; named pipes need a unix system.
func MakeFIFO(t testing.TB, _ string) {
	t.Helper()
	t.Skip("named pipes are not supported on this platform")
}
