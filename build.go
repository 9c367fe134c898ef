package stage3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/stage3/internal/codec"
	"github.com/meigma/stage3/internal/file"
	"github.com/meigma/stage3/internal/format"
	"github.com/meigma/stage3/internal/platform"
	"github.com/meigma/stage3/internal/prefetch"
	"github.com/meigma/stage3/internal/stagetype"
	"github.com/meigma/stage3/internal/walk"
)

// Summary describes a finished build.
type Summary struct {
	// Entries is the number of entries written, including the root.
	Entries int

	// Files, Dirs, Symlinks and Other count entries by kind.
	Files    int
	Dirs     int
	Symlinks int
	Other    int

	// ContentBytes is the total size of regular file content.
	ContentBytes uint64

	// ArchiveBytes is the size of the compressed archive.
	ArchiveBytes uint64

	// Digest is the sha256 digest of the compressed archive.
	Digest digest.Digest

	// Compression is the transform applied to the stream.
	Compression Compression

	// Skipped lists the paths left out under OnEntryErrorSkip.
	Skipped []*EntryError

	// Elapsed is the wall time of the build.
	Elapsed time.Duration
}

func (s *Summary) add(e *Entry) {
	s.Entries++
	switch e.Kind {
	case KindRegular:
		s.Files++
		s.ContentBytes += e.Size
	case KindDirectory:
		s.Dirs++
	case KindSymlink:
		s.Symlinks++
	default:
		s.Other++
	}
}

// Build archives the tree rooted at src into the file out.
//
// The file is created or truncated. If out lies inside src it is left out
// of the archive. On failure a partial file remains unless
// BuildWithAtomicOutput is set.
func Build(ctx context.Context, src, out string, opts ...BuildOption) (*Summary, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if out == "" {
		return nil, fmt.Errorf("%w: empty output path", ErrInput)
	}
	if err := checkSource(src); err != nil {
		return nil, err
	}

	var (
		f   *os.File
		err error
	)
	if cfg.atomic {
		f, err = os.CreateTemp(filepath.Dir(out), ".stage3-*")
	} else {
		f, err = os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // output path is chosen by the caller
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: create output: %w", ErrInput, err)
		}
		return nil, fmt.Errorf("%w: create output: %w", ErrIO, err)
	}
	discard := func() {
		f.Close()
		if cfg.atomic {
			os.Remove(f.Name())
		}
	}

	// An atomic build writes to a temporary name; an archive left at out by
	// an earlier build must stay out as well.
	for _, name := range []string{f.Name(), out} {
		if rel, ok := pathWithin(src, name); ok {
			cfg.exclude = append(cfg.exclude, func(p string) bool { return p == rel })
		}
	}

	sum, err := buildTo(ctx, src, f, &cfg)
	if err != nil {
		discard()
		return nil, err
	}
	if err := f.Close(); err != nil {
		if cfg.atomic {
			os.Remove(f.Name())
		}
		return nil, fmt.Errorf("%w: close output: %w", ErrIO, err)
	}
	if cfg.atomic {
		if err := os.Chmod(f.Name(), 0o644); err != nil { //nolint:gosec // archives are not secret
			os.Remove(f.Name())
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		if err := os.Rename(f.Name(), out); err != nil {
			os.Remove(f.Name())
			return nil, fmt.Errorf("%w: rename output: %w", ErrIO, err)
		}
	}
	return sum, nil
}

// BuildTo archives the tree rooted at src into w. w is not closed.
func BuildTo(ctx context.Context, src string, w io.Writer, opts ...BuildOption) (*Summary, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := checkSource(src); err != nil {
		return nil, err
	}
	return buildTo(ctx, src, w, &cfg)
}

func checkSource(src string) error {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: source root: %w", ErrInput, err)
		}
		return fmt.Errorf("%w: source root: %w", ErrIO, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: source root %s is not a directory", ErrInput, src)
	}
	return nil
}

// pathWithin returns the archive path of target if it lies below dir.
func pathWithin(dir, target string) (string, bool) {
	dirAbs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(dirAbs); err == nil {
		dirAbs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(targetAbs)); err == nil {
		targetAbs = filepath.Join(resolved, filepath.Base(targetAbs))
	}
	rel, err := filepath.Rel(dirAbs, targetAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// builder holds state for one archive build.
type builder struct {
	cfg    *buildConfig
	root   *os.Root
	fw     *format.Writer
	sum    *Summary
	logger *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (b *builder) log() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

func buildTo(ctx context.Context, src string, w io.Writer, cfg *buildConfig) (*Summary, error) {
	if err := cfg.compression.Valid(); err != nil {
		return nil, err
	}
	start := time.Now()

	root, err := os.OpenRoot(src)
	if err != nil {
		return nil, fmt.Errorf("%w: open source root: %w", ErrInput, err)
	}
	defer root.Close()

	b := &builder{
		cfg:    cfg,
		root:   root,
		sum:    &Summary{Compression: cfg.compression},
		logger: cfg.logger,
	}
	b.log().Info("building archive",
		"src", src,
		"compression", cfg.compression.String(),
		"deterministic", cfg.deterministic,
		"workers", cfg.workers,
		"on_entry_error", cfg.onEntryError.String())

	hasher := digest.Canonical.Digester()
	cw := &file.CountingWriter{W: io.MultiWriter(w, hasher.Hash())}
	cz, err := codec.NewWriter(cw, cfg.compression,
		codec.WithLevel(cfg.level),
		codec.WithDeterministic(cfg.deterministic))
	if err != nil {
		return nil, err
	}
	closed := false
	defer func() {
		if !closed {
			cz.Close()
		}
	}()

	info := format.StreamInfo{Deterministic: cfg.deterministic}
	if !cfg.deterministic {
		info.BuildID = uuid.NewString()
		info.Created = start.UTC()
	}
	b.fw, err = format.NewWriter(cz, info)
	if err != nil {
		return nil, err
	}

	if err := b.writeEntries(ctx); err != nil {
		return nil, err
	}

	closed = true
	if err := cz.Close(); err != nil {
		return nil, fmt.Errorf("%w: finish %s stream: %w", ErrIO, cfg.compression, err)
	}

	b.sum.ArchiveBytes = cw.N
	b.sum.Digest = hasher.Digest()
	b.sum.Elapsed = time.Since(start)
	b.log().Info("archive built",
		"entries", b.sum.Entries,
		"content_bytes", b.sum.ContentBytes,
		"archive_bytes", b.sum.ArchiveBytes,
		"skipped", len(b.sum.Skipped),
		"digest", b.sum.Digest.String(),
		"elapsed", b.sum.Elapsed)
	return b.sum, nil
}

func (b *builder) writeEntries(ctx context.Context) error {
	cfg := b.cfg
	walkOpts := []walk.Option{walk.WithLogger(b.logger)}
	if len(cfg.exclude) > 0 {
		walkOpts = append(walkOpts, walk.WithExclude(func(p string) bool {
			for _, fn := range cfg.exclude {
				if fn(p) {
					return true
				}
			}
			return false
		}))
	}

	reportProgress(cfg.progress, StageWalking, "", 0, 0)
	pipe := prefetch.Start(ctx, b.root, walk.New(ctx, b.root, walkOpts...),
		prefetch.WithWorkers(cfg.workers),
		prefetch.WithInlineLimit(cfg.inlineLimit),
		prefetch.WithReadAheadBytes(cfg.readAheadBytes),
		prefetch.WithLogger(b.logger))
	defer pipe.Close()

	for {
		res, err := pipe.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if err := b.entryFailed(err); err != nil {
				return err
			}
			continue
		}

		err = b.writeEntry(ctx, &res)
		res.Release()
		if err != nil {
			if err := b.entryFailed(err); err != nil {
				return err
			}
			continue
		}
		b.sum.add(res.Entry)
		reportProgress(cfg.progress, StageWriting, res.Entry.Path, b.sum.ContentBytes, b.sum.Entries)
	}
}

// entryFailed applies the per-path policy. It returns nil when the build
// should continue.
func (b *builder) entryFailed(err error) error {
	var entryErr *EntryError
	if !errors.As(err, &entryErr) {
		return err
	}
	if b.cfg.onEntryError != OnEntryErrorSkip {
		return entryErr
	}
	b.log().Debug("skipped entry", "path", entryErr.Path, "error", entryErr.Err)
	b.sum.Skipped = append(b.sum.Skipped, entryErr)
	return nil
}

// writeEntry writes one prefetched entry. Failures that happen before
// anything is written are returned as *EntryError.
func (b *builder) writeEntry(ctx context.Context, res *prefetch.Result) error {
	e := res.Entry
	if b.cfg.maxEntries > 0 && b.sum.Entries >= b.cfg.maxEntries {
		return fmt.Errorf("%w: %w: limit is %d", ErrInput, ErrTooManyEntries, b.cfg.maxEntries)
	}
	if b.cfg.deterministic {
		e.ModTime = time.Time{}
	}

	var content io.Reader
	if e.Kind == KindRegular {
		if res.Content != nil {
			content = bytes.NewReader(res.Content)
		} else {
			f, err := platform.OpenFileNoFollow(b.root, e.Path)
			if err != nil {
				return stagetype.NewEntryError(e.Path, err)
			}
			defer f.Close()
			content = f
		}
	}

	if err := b.fw.WriteEntry(ctx, e, content); err != nil {
		if errors.Is(err, ErrEncoding) {
			return stagetype.NewEntryError(e.Path, err)
		}
		return err
	}
	return nil
}
