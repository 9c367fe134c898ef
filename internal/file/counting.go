package file

import "io"

// CountingWriter passes writes through to W and records how many bytes W
// accepted. The builder reads N for the archive size and format.Writer for
// content offsets.
type CountingWriter struct {
	W io.Writer
	N uint64
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.W.Write(p)
	cw.N += uint64(n) //nolint:gosec // io.Writer never reports a negative count
	return n, err
}
