// Package prefetch hashes regular files ahead of the archive writer.
//
// An archive header carries the content digest, so every file must be
// hashed before its header is written. The pipeline walks the tree on a
// producer goroutine and hashes files on a bounded worker pool while
// delivering results strictly in walk order. Small files are read into
// memory once; large files are only hashed here and streamed again by the
// writer.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/stage3/internal/file"
	"github.com/meigma/stage3/internal/format"
	"github.com/meigma/stage3/internal/platform"
	"github.com/meigma/stage3/internal/stagetype"
)

const (
	// DefaultInlineLimit is the largest file read fully into memory.
	DefaultInlineLimit = 1 << 20

	// DefaultReadAheadBytes bounds the memory held by inline content that
	// has been read but not yet consumed.
	DefaultReadAheadBytes = 64 << 20
)

// Source yields entries in archive order. It is satisfied by *walk.Walker.
type Source interface {
	Next() (*stagetype.Entry, error)
}

// Result is one entry ready to be written.
type Result struct {
	// Entry has Checksum and Size filled in for regular files.
	Entry *stagetype.Entry

	// Content holds the file bytes when the file was small enough to be
	// read inline. Nil for large files and non-regular entries.
	Content []byte

	release func()
}

// Release returns the memory budget held by Content. It is safe to call
// more than once.
func (r *Result) Release() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}

type config struct {
	workers        int
	inlineLimit    int64
	readAheadBytes int64
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*config)

// WithWorkers sets the number of hashing goroutines. Values <= 1 hash on
// the consumer's goroutine.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithInlineLimit sets the largest file size read fully into memory.
func WithInlineLimit(n int64) Option {
	return func(c *config) {
		c.inlineLimit = n
	}
}

// WithReadAheadBytes bounds memory held by unconsumed inline content.
func WithReadAheadBytes(n int64) Option {
	return func(c *config) {
		c.readAheadBytes = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

type outcome struct {
	res Result
	err error
}

// Pipeline delivers hashed entries in source order.
type Pipeline struct {
	ctx    context.Context
	cancel context.CancelFunc
	root   *os.Root
	src    Source
	cfg    config

	sem     *semaphore.Weighted
	futures chan chan outcome
	group   errgroup.Group
	done    chan struct{}

	hashed  atomic.Int64
	inlined atomic.Int64
	once    sync.Once
}

// Start begins prefetching entries from src. Files are opened below root.
// Callers must call Close when done, even after an error.
func Start(ctx context.Context, root *os.Root, src Source, opts ...Option) *Pipeline {
	cfg := config{
		inlineLimit:    DefaultInlineLimit,
		readAheadBytes: DefaultReadAheadBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.readAheadBytes <= 0 {
		cfg.readAheadBytes = DefaultReadAheadBytes
	}
	if cfg.inlineLimit < 0 {
		cfg.inlineLimit = 0
	}
	// A single file must always fit in the budget or acquisition would
	// block forever.
	cfg.inlineLimit = min(cfg.inlineLimit, cfg.readAheadBytes)

	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		ctx:    ctx,
		cancel: cancel,
		root:   root,
		src:    src,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.readAheadBytes),
		done:   make(chan struct{}),
	}
	if cfg.workers > 1 {
		p.futures = make(chan chan outcome, cfg.workers*2)
		p.group.SetLimit(cfg.workers)
		go p.produce()
	} else {
		close(p.done)
	}
	return p
}

func (p *Pipeline) log() *slog.Logger {
	if p.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.cfg.logger
}

// Next returns the next entry. It returns io.EOF after the last entry.
// Per-entry failures are *stagetype.EntryError values and Next may be
// called again; any other error is fatal.
func (p *Pipeline) Next() (Result, error) {
	if err := p.ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.futures == nil {
		return p.nextInline()
	}

	var fut chan outcome
	select {
	case f, ok := <-p.futures:
		if !ok {
			return Result{}, io.EOF
		}
		fut = f
	case <-p.ctx.Done():
		return Result{}, p.ctx.Err()
	}

	select {
	case o := <-fut:
		return o.res, o.err
	case <-p.ctx.Done():
		return Result{}, p.ctx.Err()
	}
}

func (p *Pipeline) nextInline() (Result, error) {
	e, err := p.src.Next()
	if err != nil {
		return Result{}, err
	}
	if e.Kind != stagetype.KindRegular {
		return Result{Entry: e}, nil
	}
	var release func()
	if e.Size <= uint64(p.cfg.inlineLimit) { //nolint:gosec // inlineLimit is non-negative
		if err := p.sem.Acquire(p.ctx, int64(e.Size)); err != nil { //nolint:gosec // bounded by inlineLimit
			return Result{}, err
		}
		release = p.releaseFunc(int64(e.Size)) //nolint:gosec // bounded by inlineLimit
	}
	o := p.hash(e, release)
	return o.res, o.err
}

// produce walks the source and schedules hashing in order. Inline budget is
// acquired here, in walk order, so the entry at the head of the queue can
// always make progress.
func (p *Pipeline) produce() {
	defer close(p.done)
	defer close(p.futures)

	for {
		e, err := p.src.Next()
		if errors.Is(err, io.EOF) {
			return
		}

		fut := make(chan outcome, 1)
		select {
		case p.futures <- fut:
		case <-p.ctx.Done():
			return
		}

		if err != nil {
			fut <- outcome{err: err}
			var entryErr *stagetype.EntryError
			if errors.As(err, &entryErr) {
				continue
			}
			return
		}
		if e.Kind != stagetype.KindRegular {
			fut <- outcome{res: Result{Entry: e}}
			continue
		}

		var release func()
		if e.Size <= uint64(p.cfg.inlineLimit) { //nolint:gosec // inlineLimit is non-negative
			if err := p.sem.Acquire(p.ctx, int64(e.Size)); err != nil { //nolint:gosec // bounded by inlineLimit
				fut <- outcome{err: err}
				return
			}
			release = p.releaseFunc(int64(e.Size)) //nolint:gosec // bounded by inlineLimit
		}
		p.group.Go(func() error {
			fut <- p.hash(e, release)
			return nil
		})
	}
}

func (p *Pipeline) releaseFunc(n int64) func() {
	var once sync.Once
	return func() {
		once.Do(func() { p.sem.Release(n) })
	}
}

// hash computes the digest of a regular file. A non-nil release means the
// content is kept in memory; ownership passes to the returned Result.
func (p *Pipeline) hash(e *stagetype.Entry, release func()) outcome {
	if err := p.ctx.Err(); err != nil {
		if release != nil {
			release()
		}
		return outcome{err: err}
	}

	o := p.hashFile(e, release != nil)
	if o.err != nil || o.res.Content == nil {
		if release != nil {
			release()
		}
		return o
	}
	o.res.release = release
	return o
}

func (p *Pipeline) hashFile(e *stagetype.Entry, inline bool) outcome {
	f, err := platform.OpenFileNoFollow(p.root, e.Path)
	if err != nil {
		if errors.Is(err, platform.ErrSymlink) {
			err = fmt.Errorf("%w: %w", format.ErrContentChanged, err)
		}
		return outcome{err: stagetype.NewEntryError(e.Path, err)}
	}
	defer f.Close()

	limited := io.LimitReader(f, int64(e.Size)) //nolint:gosec // sizes come from lstat
	var (
		sum     digest.Digest
		n       uint64
		content []byte
	)
	if inline {
		hr := file.NewHashingReader(limited)
		content = make([]byte, e.Size)
		var read int
		read, err = io.ReadFull(hr, content)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil // short reads are caught by the size check below
		}
		content = content[:read]
		sum, n = hr.Digest(), uint64(read) //nolint:gosec // read is non-negative
	} else {
		sum, n, err = file.DigestReader(limited, nil)
	}
	if err != nil {
		return outcome{err: stagetype.NewEntryError(e.Path, err)}
	}
	if n != e.Size {
		return outcome{err: stagetype.NewEntryError(e.Path,
			fmt.Errorf("%w: %w: read %d of %d bytes", stagetype.ErrIO, format.ErrContentChanged, n, e.Size))}
	}
	if err := file.EnsureNoExtra(f, format.ErrContentChanged); err != nil {
		return outcome{err: stagetype.NewEntryError(e.Path, fmt.Errorf("%w: %w", stagetype.ErrIO, err))}
	}

	e.Checksum = sum
	p.hashed.Add(1)
	if inline {
		p.inlined.Add(int64(len(content)))
		return outcome{res: Result{Entry: e, Content: content}}
	}
	return outcome{res: Result{Entry: e}}
}

// Close stops the pipeline and waits for its goroutines. Results already
// handed out stay valid; their budgets no longer matter.
func (p *Pipeline) Close() error {
	p.once.Do(func() {
		p.cancel()
		if p.futures != nil {
			// Unblock the producer if it is waiting to hand over a future.
			go func() {
				for range p.futures { //nolint:revive // drain
				}
			}()
		}
		<-p.done
		_ = p.group.Wait() //nolint:errcheck // workers report through futures
		p.log().Debug("prefetch finished",
			"files_hashed", p.hashed.Load(),
			"bytes_inlined", p.inlined.Load(),
			"workers", p.cfg.workers)
	})
	return nil
}
