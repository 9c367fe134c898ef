package file

import (
	"context"
	"io"
)

// DefaultBufferSize is the copy buffer size used when callers do not
// provide their own.
const DefaultBufferSize = 32 << 10

// CopyWithContext copies from src to dst until EOF or error, checking ctx
// between reads so a cancelled build or verify stops within one buffer.
// It returns the number of bytes written.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (uint64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}
	var written uint64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += uint64(nw) //nolint:gosec // io.Writer never reports a negative count
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, er
		}
	}
}

// EnsureNoExtra reads from r and returns errExtra if any data is available.
func EnsureNoExtra(r io.Reader, errExtra error) error {
	var scratch [1]byte
	n, err := r.Read(scratch[:])
	if n > 0 {
		return errExtra
	}
	if err == nil || err == io.EOF {
		return nil
	}
	return err
}
