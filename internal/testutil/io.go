package testutil

import (
	"errors"
	"io"
)

// ErrInjected is returned by the failing readers and writers.
var ErrInjected = errors.New("injected failure")

// FailingWriter accepts Limit bytes and then fails.
type FailingWriter struct {
	Limit int
	n     int
}

// Write implements io.Writer.
func (w *FailingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.Limit {
		n := w.Limit - w.n
		w.n = w.Limit
		return n, ErrInjected
	}
	w.n += len(p)
	return len(p), nil
}

// FailingReader yields the bytes of Data and then fails instead of
// returning io.EOF.
type FailingReader struct {
	Data []byte
	off  int
}

// Read implements io.Reader.
func (r *FailingReader) Read(p []byte) (int, error) {
	if r.off >= len(r.Data) {
		return 0, ErrInjected
	}
	n := copy(p, r.Data[r.off:])
	r.off += n
	return n, nil
}

var _ io.Reader = (*FailingReader)(nil)
