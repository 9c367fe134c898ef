// Package codec applies and removes the whole-stream compression transform
// of stage3 archives.
//
// Readers detect the transform from the leading magic bytes, so archives
// can be read without knowing how they were written.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/meigma/stage3/internal/stagetype"
)

// Magic byte prefixes of the supported transforms.
var (
	magicZstd = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicGzip = []byte{0x1F, 0x8B}
	magicXz   = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
)

const peekSize = 6

// readBufferSize is the buffer placed in front of the source for sniffing.
const readBufferSize = 64 << 10

type writerConfig struct {
	level         int
	deterministic bool
}

// WriterOption configures NewWriter.
type WriterOption func(*writerConfig)

// WithLevel sets the compression level. Zero selects the algorithm default.
// For zstd the level uses the zstd command line scale (1-22); gzip and xz
// use the usual 1-9 scale. An uncompressed stream takes no level.
func WithLevel(level int) WriterOption {
	return func(c *writerConfig) {
		c.level = level
	}
}

// WithDeterministic makes the compressed output depend only on the input
// bytes and the level.
func WithDeterministic(deterministic bool) WriterOption {
	return func(c *writerConfig) {
		c.deterministic = deterministic
	}
}

// NewWriter returns a writer that compresses into w. Closing the returned
// writer flushes the transform but does not close w.
func NewWriter(w io.Writer, c stagetype.Compression, opts ...WriterOption) (io.WriteCloser, error) {
	var cfg writerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	switch c {
	case stagetype.CompressionNone:
		if cfg.level != 0 {
			return nil, fmt.Errorf("%w: level %d set for an uncompressed stream", stagetype.ErrInput, cfg.level)
		}
		return nopWriteCloser{w}, nil
	case stagetype.CompressionZstd:
		return newZstdWriter(w, &cfg)
	case stagetype.CompressionGzip:
		return newGzipWriter(w, &cfg)
	case stagetype.CompressionXz:
		return newXzWriter(w, &cfg)
	default:
		return nil, c.Valid()
	}
}

func newZstdWriter(w io.Writer, cfg *writerConfig) (io.WriteCloser, error) {
	opts := make([]zstd.EOption, 0, 2)
	if cfg.level != 0 {
		if cfg.level < 1 || cfg.level > 22 {
			return nil, fmt.Errorf("%w: zstd level %d out of range 1-22", stagetype.ErrInput, cfg.level)
		}
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.level)))
	}
	if cfg.deterministic {
		opts = append(opts, zstd.WithEncoderConcurrency(1))
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd writer: %w", stagetype.ErrIO, err)
	}
	return enc, nil
}

func newGzipWriter(w io.Writer, cfg *writerConfig) (io.WriteCloser, error) {
	level := gzip.DefaultCompression
	if cfg.level != 0 {
		level = cfg.level
	}
	if level != gzip.DefaultCompression && (level < gzip.BestSpeed || level > gzip.BestCompression) {
		return nil, fmt.Errorf("%w: gzip level %d out of range 1-9", stagetype.ErrInput, level)
	}
	gw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip writer: %w", stagetype.ErrInput, err)
	}
	// The header time stays zero so identical input yields identical output.
	return gw, nil
}

// xzDictCaps maps xz levels 1-9 to the dictionary sizes of the xz(1)
// presets.
var xzDictCaps = [...]int{
	1: 1 << 20,
	2: 2 << 20,
	3: 4 << 20,
	4: 4 << 20,
	5: 8 << 20,
	6: 8 << 20,
	7: 16 << 20,
	8: 32 << 20,
	9: 64 << 20,
}

func newXzWriter(w io.Writer, cfg *writerConfig) (io.WriteCloser, error) {
	var xc xz.WriterConfig
	if cfg.level != 0 {
		if cfg.level < 1 || cfg.level > 9 {
			return nil, fmt.Errorf("%w: xz level %d out of range 1-9", stagetype.ErrInput, cfg.level)
		}
		xc.DictCap = xzDictCaps[cfg.level]
	}
	xw, err := xc.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("%w: xz writer: %w", stagetype.ErrIO, err)
	}
	return xw, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Detect reports the transform whose magic bytes prefix header. Anything
// unrecognised is assumed to be an uncompressed stream.
func Detect(header []byte) stagetype.Compression {
	switch {
	case bytes.HasPrefix(header, magicZstd):
		return stagetype.CompressionZstd
	case bytes.HasPrefix(header, magicGzip):
		return stagetype.CompressionGzip
	case bytes.HasPrefix(header, magicXz):
		return stagetype.CompressionXz
	default:
		return stagetype.CompressionNone
	}
}

// NewReader sniffs the transform applied to r and returns a reader of the
// decompressed stream along with the detected transform.
//
// Errors from r surface as ErrIO. Any other failure while decoding means
// the stream is corrupt and surfaces as ErrFormat.
func NewReader(r io.Reader) (io.ReadCloser, stagetype.Compression, error) {
	br := bufio.NewReaderSize(sourceReader{r}, readBufferSize)
	header, err := br.Peek(peekSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, 0, stagetype.Classify(err)
	}

	c := Detect(header)
	switch c {
	case stagetype.CompressionZstd:
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, c, formatError(err)
		}
		return &decodeReader{r: dec, close: func() error { dec.Close(); return nil }}, c, nil
	case stagetype.CompressionGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, formatError(err)
		}
		return &decodeReader{r: gr, close: gr.Close}, c, nil
	case stagetype.CompressionXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, c, formatError(err)
		}
		return &decodeReader{r: xr}, c, nil
	default:
		return &decodeReader{r: br}, c, nil
	}
}

// sourceReader marks errors from the underlying source as I/O errors so
// they are not mistaken for corruption by decodeReader.
type sourceReader struct {
	r io.Reader
}

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = stagetype.Classify(err)
	}
	return n, err
}

type decodeReader struct {
	r     io.Reader
	close func() error
}

func (d *decodeReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF {
		err = formatError(err)
	}
	return n, err
}

func (d *decodeReader) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

func formatError(err error) error {
	if stagetype.HasClass(err) {
		return err
	}
	return fmt.Errorf("%w: %w", stagetype.ErrFormat, err)
}
