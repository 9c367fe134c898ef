package format

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/stage3/internal/file"
	"github.com/meigma/stage3/internal/stagetype"
)

// Writer writes entries to a decompressed stage3 stream.
//
// Writer does not buffer; callers wrap the destination in a compressor.
// It is not safe for concurrent use.
type Writer struct {
	cw      *file.CountingWriter
	builder *flatbuffers.Builder
	buf     []byte
	err     error
}

// NewWriter writes the stream preamble to w and returns a Writer for the
// entries that follow.
func NewWriter(w io.Writer, info StreamInfo) (*Writer, error) {
	sw := &Writer{
		cw:      &file.CountingWriter{W: w},
		builder: flatbuffers.NewBuilder(512),
		buf:     make([]byte, file.DefaultBufferSize),
	}

	data := encodeStreamInfo(info)
	preamble := make([]byte, 0, len(Magic)+1+lengthPrefixSize+len(data))
	preamble = append(preamble, Magic...)
	preamble = append(preamble, Version)
	preamble = append(preamble, 0, 0, 0, 0)
	putLength(preamble[len(Magic)+1:], len(data))
	preamble = append(preamble, data...)

	if _, err := sw.cw.Write(preamble); err != nil {
		return nil, fmt.Errorf("%w: write preamble: %w", stagetype.ErrIO, err)
	}
	return sw, nil
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() uint64 {
	return w.cw.N
}

// WriteEntry appends e to the stream. For regular files content must yield
// exactly e.Size bytes whose digest is e.Checksum; otherwise content is
// ignored and may be nil.
//
// WriteEntry sets e.ContentOffset. Metadata that cannot be stored is
// reported as ErrEncoding before anything is written, so the stream stays
// usable. Any failure after that point is sticky.
func (w *Writer) WriteEntry(ctx context.Context, e *stagetype.Entry, content io.Reader) error {
	if w.err != nil {
		return w.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sum, err := validateEntry(e)
	if err != nil {
		return err
	}

	header := encodeHeader(w.builder, e, sum)
	if len(header)-lengthPrefixSize > MaxHeaderSize {
		return fmt.Errorf("%w: %s: header is %d bytes, limit %d", stagetype.ErrEncoding, e.Path, len(header), MaxHeaderSize)
	}
	if _, err := w.cw.Write(header); err != nil {
		w.err = fmt.Errorf("%w: write header %s: %w", stagetype.ErrIO, e.Path, err)
		return w.err
	}

	if e.Kind != stagetype.KindRegular {
		e.ContentOffset = 0
		return nil
	}
	e.ContentOffset = w.cw.N
	if err := w.writeContent(ctx, e, content); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *Writer) writeContent(ctx context.Context, e *stagetype.Entry, content io.Reader) error {
	if content == nil {
		return fmt.Errorf("%w: %s: missing content", stagetype.ErrInput, e.Path)
	}

	hr := file.NewHashingReader(content)
	n, err := file.CopyWithContext(ctx, w.cw, io.LimitReader(hr, int64(e.Size)), w.buf) //nolint:gosec // size validated by validateEntry
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %w", stagetype.ErrIO, e.Path, err)
	}
	if n != e.Size {
		return fmt.Errorf("%w: %s: %w: read %d of %d bytes", stagetype.ErrIO, e.Path, ErrContentChanged, n, e.Size)
	}
	if err := file.EnsureNoExtra(content, ErrContentChanged); err != nil {
		return fmt.Errorf("%w: %s: %w: file grew", stagetype.ErrIO, e.Path, err)
	}
	if got := hr.Digest(); got != e.Checksum {
		return fmt.Errorf("%w: %s: %w: digest %s, header has %s", stagetype.ErrIO, e.Path, ErrContentChanged, got, e.Checksum)
	}
	return nil
}

// validateEntry checks that e can be represented and returns the raw
// checksum bytes for regular files.
func validateEntry(e *stagetype.Entry) ([]byte, error) {
	if err := stagetype.ValidatePath(e.Path); err != nil {
		return nil, err
	}
	encoding := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", stagetype.ErrEncoding, e.Path, fmt.Sprintf(format, args...))
	}
	if !e.Kind.Valid() {
		return nil, encoding("unknown kind %d", e.Kind)
	}
	if e.Mode&^stagetype.ModeMask != 0 {
		return nil, encoding("mode %#o has bits outside %#o", e.Mode, stagetype.ModeMask)
	}
	if e.Kind == stagetype.KindSymlink {
		if e.LinkTarget == "" {
			return nil, encoding("symlink without target")
		}
		if !utf8.ValidString(e.LinkTarget) || strings.IndexByte(e.LinkTarget, 0) >= 0 {
			return nil, encoding("link target is not representable: %q", e.LinkTarget)
		}
	} else if e.LinkTarget != "" {
		return nil, encoding("link target on %s entry", e.Kind)
	}
	if e.Kind != stagetype.KindOther && e.Special != stagetype.SpecialNone {
		return nil, encoding("special type on %s entry", e.Kind)
	}
	if e.Special > stagetype.SpecialIrregular {
		return nil, encoding("unknown special type %d", e.Special)
	}
	if e.Kind != stagetype.KindRegular {
		if e.Size != 0 {
			return nil, encoding("%s entry with size %d", e.Kind, e.Size)
		}
		return nil, nil
	}
	if e.Size > 1<<63-1 {
		return nil, encoding("size %d too large", e.Size)
	}
	sum, err := checksumBytes(e.Checksum)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: checksum: %w", stagetype.ErrInput, e.Path, err)
	}
	return sum, nil
}
