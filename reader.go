package stage3

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"

	"github.com/meigma/stage3/internal/codec"
	"github.com/meigma/stage3/internal/format"
	"github.com/meigma/stage3/internal/stagetype"
)

// Reader reads an archive forward-only, one entry at a time.
//
// The content of the current entry is available through Content until the
// next call to Next; unread content is skipped. Restarting requires
// opening the archive again. A Reader is not safe for concurrent use.
type Reader struct {
	fr          *format.Reader
	compression Compression
	closers     []io.Closer
}

// readerOption configures how an archive is opened. Only verification
// reads archives with unsafe paths.
type readerOption func(*readerOptions)

type readerOptions struct {
	allowUnsafePaths bool
}

func allowUnsafePaths() readerOption {
	return func(o *readerOptions) { o.allowUnsafePaths = true }
}

// Open opens the archive at path. The compression transform is detected
// from the file's leading bytes.
func Open(path string) (*Reader, error) {
	return openFile(path)
}

func openFile(path string, opts ...readerOption) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // archive path is chosen by the caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: open archive: %w", ErrInput, err)
		}
		return nil, fmt.Errorf("%w: open archive: %w", ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat archive: %w", ErrIO, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: archive %s is a directory", ErrInput, path)
	}

	// Uncompressed archives are read directly so skipped content can be
	// seeked over.
	var header [8]byte
	n, err := f.ReadAt(header[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("%w: read archive: %w", ErrIO, err)
	}
	var r *Reader
	if codec.Detect(header[:n]) == CompressionNone {
		r, err = newRawReader(f, opts...)
	} else {
		r, err = newReader(f, opts...)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader returns a Reader for the archive stream r. The compression
// transform is detected from the leading bytes. Closing the Reader does not
// close r.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r)
}

func newReader(r io.Reader, opts ...readerOption) (*Reader, error) {
	dec, c, err := codec.NewReader(r)
	if err != nil {
		return nil, err
	}
	fr, err := format.NewReader(dec, formatOptions(opts)...)
	if err != nil {
		dec.Close()
		return nil, err
	}
	return &Reader{fr: fr, compression: c, closers: []io.Closer{dec}}, nil
}

func newRawReader(r io.Reader, opts ...readerOption) (*Reader, error) {
	fr, err := format.NewReader(r, formatOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &Reader{fr: fr, compression: CompressionNone}, nil
}

func formatOptions(opts []readerOption) []format.ReaderOption {
	var o readerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return []format.ReaderOption{format.WithAllowUnsafePaths(o.allowUnsafePaths)}
}

// Info returns the archive-wide metadata.
func (r *Reader) Info() ArchiveInfo {
	return r.fr.Info()
}

// Compression returns the detected compression transform.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Next advances to the next entry and returns it. It returns io.EOF at
// the end of the archive.
func (r *Reader) Next() (*Entry, error) {
	return r.fr.Next()
}

// Content returns a reader for the current entry's content. It yields
// nothing for entries other than regular files.
func (r *Reader) Content() io.Reader {
	return r.fr.Content()
}

// Entries returns an iterator over the remaining entries. Iteration stops
// at the first error, which is yielded with a nil entry.
func (r *Reader) Entries() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			e, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the decoder and, for readers returned by Open, the file.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if err := errors.Join(errs...); err != nil {
		return stagetype.Classify(err)
	}
	return nil
}
