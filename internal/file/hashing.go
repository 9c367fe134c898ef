package file

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// HashingReader wraps an io.Reader and digests all data read.
type HashingReader struct {
	r io.Reader
	d digest.Digester
}

// NewHashingReader creates a reader that digests content with the canonical
// algorithm while reading.
func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, d: digest.Canonical.Digester()}
}

// Read implements io.Reader.
func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		_, _ = hr.d.Hash().Write(p[:n]) //nolint:errcheck // hash writes never fail
	}
	return n, err
}

// Digest returns the digest of the data read so far.
func (hr *HashingReader) Digest() digest.Digest {
	return hr.d.Digest()
}

// DigestReader reads r to EOF and returns its digest and length.
func DigestReader(r io.Reader, buf []byte) (digest.Digest, uint64, error) {
	d := digest.Canonical.Digester()
	n, err := io.CopyBuffer(d.Hash(), r, buf)
	if err != nil {
		return "", 0, err
	}
	return d.Digest(), uint64(n), nil //nolint:gosec // io.Copy never returns a negative count
}
