// Package walk enumerates a source tree in archive order.
//
// The walk is pre-order with the children of each directory sorted
// byte-wise by name, so the same tree always yields the same sequence.
// Symbolic links are recorded, never followed, and nothing outside the
// root is opened.
package walk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"unicode/utf8"

	"github.com/meigma/stage3/internal/stagetype"
)

// ExcludeFunc reports whether an archive path should be left out of the
// walk. Excluded directories are not descended into.
type ExcludeFunc func(path string) bool

type config struct {
	exclude ExcludeFunc
	logger  *slog.Logger
}

// Option configures a Walker.
type Option func(*config)

// WithExclude sets a predicate for paths to omit.
func WithExclude(fn ExcludeFunc) Option {
	return func(c *config) {
		c.exclude = fn
	}
}

// WithLogger sets the logger for skipped paths.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Walker yields the entries of a tree one at a time.
type Walker struct {
	ctx  context.Context
	root *os.Root
	cfg  config

	started bool
	stack   []frame
	pending error
}

// frame is a directory whose children are still being emitted.
type frame struct {
	dir   string
	names []string
	next  int
}

// New returns a walker over root. The caller keeps ownership of root and
// must not close it before the walk is done.
func New(ctx context.Context, root *os.Root, opts ...Option) *Walker {
	w := &Walker{ctx: ctx, root: root}
	for _, opt := range opts {
		opt(&w.cfg)
	}
	return w
}

func (w *Walker) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}

// Next returns the next entry. It returns io.EOF after the last entry.
//
// A failure confined to one path is returned as a *stagetype.EntryError;
// the walk can be resumed by calling Next again. A directory whose
// listing fails is returned first and its listing error on the following
// call. Any other error is fatal.
func (w *Walker) Next() (*stagetype.Entry, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	if w.pending != nil {
		err := w.pending
		w.pending = nil
		return nil, err
	}
	if !w.started {
		w.started = true
		return w.rootEntry()
	}

	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.next == len(top.names) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		name := top.names[top.next]
		top.next++

		path := stagetype.Join(top.dir, name)
		if w.cfg.exclude != nil && w.cfg.exclude(path) {
			w.log().Debug("excluded path", "path", path)
			continue
		}
		return w.visit(path, name)
	}
	return nil, io.EOF
}

func (w *Walker) rootEntry() (*stagetype.Entry, error) {
	info, err := w.root.Lstat(".")
	if err != nil {
		return nil, fmt.Errorf("%w: stat source root: %w", stagetype.ErrInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: source root is not a directory", stagetype.ErrInput)
	}
	e := stagetype.NewEntry(stagetype.RootPath, info)
	w.descend(stagetype.RootPath)
	return &e, nil
}

func (w *Walker) visit(path, name string) (*stagetype.Entry, error) {
	if !utf8.ValidString(name) {
		return nil, stagetype.NewEntryError(path,
			fmt.Errorf("%w: name is not valid UTF-8: %q", stagetype.ErrEncoding, name))
	}

	info, err := w.root.Lstat(path)
	if err != nil {
		return nil, stagetype.NewEntryError(path, err)
	}
	e := stagetype.NewEntry(path, info)

	switch e.Kind {
	case stagetype.KindSymlink:
		target, err := w.root.Readlink(path)
		if err != nil {
			return nil, stagetype.NewEntryError(path, err)
		}
		e.LinkTarget = target
	case stagetype.KindDirectory:
		w.descend(path)
	}
	return &e, nil
}

// descend lists dir and pushes its children. A listing failure is held
// back until the directory entry itself has been returned.
func (w *Walker) descend(dir string) {
	names, err := w.readDirNames(dir)
	if err != nil {
		w.pending = stagetype.NewEntryError(dir, err)
		return
	}
	if len(names) > 0 {
		w.stack = append(w.stack, frame{dir: dir, names: names})
	}
}

func (w *Walker) readDirNames(dir string) ([]string, error) {
	f, err := w.root.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}
