package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/meigma/stage3/internal/stagetype"
)

type readerConfig struct {
	allowUnsafePaths bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerConfig)

// WithAllowUnsafePaths accepts entry paths that fail stagetype.ValidatePath
// instead of failing with ErrFormat. Verification uses this to report such
// paths rather than stopping at the first one.
func WithAllowUnsafePaths(allow bool) ReaderOption {
	return func(c *readerConfig) {
		c.allowUnsafePaths = allow
	}
}

// Reader reads entries from a decompressed stage3 stream.
//
// Entries are returned in stream order. The content of the current entry
// can be read through Content until the next call to Next; unread content
// is skipped. A Reader is not safe for concurrent use.
type Reader struct {
	src    io.Reader
	seeker io.Seeker
	size   int64

	cfg    readerConfig
	info   StreamInfo
	offset uint64
	count  int

	cur       *stagetype.Entry
	remaining uint64
	lenBuf    [lengthPrefixSize]byte
	hdrBuf    []byte
	err       error
}

// NewReader reads the stream preamble from r.
//
// If r is also an io.Seeker positioned at the start of the stream, skipped
// content is seeked over instead of read.
func NewReader(r io.Reader, opts ...ReaderOption) (*Reader, error) {
	sr := &Reader{src: r}
	for _, opt := range opts {
		opt(&sr.cfg)
	}
	if s, ok := r.(io.Seeker); ok {
		if err := sr.initSeeker(s); err != nil {
			return nil, err
		}
	}
	if err := sr.readPreamble(); err != nil {
		return nil, err
	}
	return sr, nil
}

func (r *Reader) initSeeker(s io.Seeker) error {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		// Not actually seekable (pipes); fall back to reading.
		return nil //nolint:nilerr // seeking is an optimization
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return stagetype.Classify(err)
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return stagetype.Classify(err)
	}
	r.seeker = s
	r.size = end - cur
	return nil
}

func (r *Reader) readPreamble() error {
	var head [len(Magic) + 1 + lengthPrefixSize]byte
	if _, err := io.ReadFull(r.src, head[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: stream too short for preamble", stagetype.ErrFormat)
		}
		return stagetype.Classify(err)
	}
	if !bytes.Equal(head[:len(Magic)], []byte(Magic)) {
		return fmt.Errorf("%w: not a stage3 stream (magic %q)", stagetype.ErrFormat, head[:len(Magic)])
	}
	if v := head[len(Magic)]; v != Version {
		return fmt.Errorf("%w: unsupported version %d", stagetype.ErrFormat, v)
	}

	n := binary.LittleEndian.Uint32(head[len(Magic)+1:])
	if n == 0 || n > MaxHeaderSize {
		return fmt.Errorf("%w: stream info length %d out of range", stagetype.ErrFormat, n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r.src, data); err != nil {
		return r.truncated(err, "stream info")
	}
	info, err := decodeStreamInfo(data)
	if err != nil {
		return err
	}
	r.info = info
	r.offset = uint64(len(head)) + uint64(n)
	return nil
}

// Info returns the stream metadata.
func (r *Reader) Info() StreamInfo {
	return r.info
}

// Offset returns the current position in the decompressed stream.
func (r *Reader) Offset() uint64 {
	return r.offset
}

// Next advances to the next entry. It returns io.EOF when the stream ends
// cleanly at a record boundary. Errors are sticky.
func (r *Reader) Next() (*stagetype.Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	e, err := r.next()
	if err != nil {
		r.err = err
		r.cur = nil
		return nil, err
	}
	r.cur = e
	return e, nil
}

func (r *Reader) next() (*stagetype.Entry, error) {
	if err := r.skipContent(); err != nil {
		return nil, err
	}

	n, err := io.ReadFull(r.src, r.lenBuf[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, r.truncated(err, "header length")
	}
	size := binary.LittleEndian.Uint32(r.lenBuf[:])
	if size == 0 || size > MaxHeaderSize {
		return nil, fmt.Errorf("%w: entry %d: header length %d out of range", stagetype.ErrFormat, r.count, size)
	}
	if cap(r.hdrBuf) < int(size) {
		r.hdrBuf = make([]byte, size)
	}
	buf := r.hdrBuf[:size]
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return nil, r.truncated(err, "header")
	}
	r.offset += lengthPrefixSize + uint64(size)

	e, err := decodeHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", r.count, err)
	}
	if !r.cfg.allowUnsafePaths {
		if err := stagetype.ValidatePath(e.Path); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", stagetype.ErrFormat, r.count, err)
		}
	}
	if e.Kind == stagetype.KindRegular {
		if e.Size > math.MaxInt64 || r.offset > math.MaxUint64-e.Size {
			return nil, fmt.Errorf("%w: %s: size %d overflows stream offset", stagetype.ErrFormat, e.Path, e.Size)
		}
		if r.seeker != nil && r.offset+e.Size > uint64(r.size) { //nolint:gosec // size is non-negative
			return nil, fmt.Errorf("%w: %s: declared size %d overruns the stream", stagetype.ErrFormat, e.Path, e.Size)
		}
		e.ContentOffset = r.offset
		r.remaining = e.Size
	}
	r.count++
	return &e, nil
}

// Content returns a reader for the current entry's content. It yields
// nothing for non-regular entries. Reading past the end of the stream
// before the declared size is reached fails with ErrFormat.
func (r *Reader) Content() io.Reader {
	return contentReader{r: r}
}

type contentReader struct {
	r *Reader
}

func (c contentReader) Read(p []byte) (int, error) {
	r := c.r
	if r.err != nil {
		return 0, r.err
	}
	if r.remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.src.Read(p)
	r.remaining -= uint64(n) //nolint:gosec // n is bounded by len(p)
	r.offset += uint64(n)    //nolint:gosec // n is bounded by len(p)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if r.remaining == 0 {
				return n, nil
			}
			err = io.ErrUnexpectedEOF
		}
		r.err = r.truncated(err, "content of "+r.cur.Path)
		return n, r.err
	}
	return n, nil
}

func (r *Reader) skipContent() error {
	if r.remaining == 0 {
		return nil
	}
	if r.seeker != nil {
		if _, err := r.seeker.Seek(int64(r.remaining), io.SeekCurrent); err != nil { //nolint:gosec // Next bounds sizes to MaxInt64
			return stagetype.Classify(err)
		}
		r.offset += r.remaining
		r.remaining = 0
		return nil
	}
	if _, err := io.Copy(io.Discard, r.Content()); err != nil {
		return err
	}
	return nil
}

func (r *Reader) truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s at offset %d", stagetype.ErrFormat, what, r.offset)
	}
	return stagetype.Classify(err)
}
