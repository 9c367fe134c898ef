package rootfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/meigma/stage3/internal/stagetype"
)

type applyConfig struct {
	logger *slog.Logger
	source string
}

// ApplyOption configures Apply.
type ApplyOption func(*applyConfig)

// ApplyWithLogger sets the logger for Apply.
func ApplyWithLogger(logger *slog.Logger) ApplyOption {
	return func(c *applyConfig) {
		c.logger = logger
	}
}

// ApplyWithSource sets the source root filesystem the layout's copy
// section reads from. Without it copies are skipped.
func ApplyWithSource(dir string) ApplyOption {
	return func(c *applyConfig) {
		c.source = dir
	}
}

// applier materializes one layout below a root.
type applier struct {
	root    *os.Root
	logger  *slog.Logger
	created int
	kept    int
}

// Apply creates the layout below dir, which must exist.
//
// Apply is idempotent: entries that already exist with the right type are
// left untouched, including their modes and content. A path that exists
// with the wrong type, or a symlink with a different target, fails with
// ErrConflict; nothing is removed. Missing parent directories are created
// with mode 0755. Nothing outside dir is modified.
//
// Copies run last, so a file the layout writes wins over the source's
// version of it. Source symlinks are recreated, never followed, except
// when resolving shared libraries.
func (l *Layout) Apply(ctx context.Context, dir string, opts ...ApplyOption) error {
	var cfg applyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := l.Validate(); err != nil {
		return err
	}

	root, err := openDir("staging", dir)
	if err != nil {
		return err
	}
	defer root.Close()

	a := &applier{root: root, logger: logger}
	for _, d := range l.Dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.dir(d); err != nil {
			return err
		}
	}
	for _, s := range l.Symlinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.symlink(s); err != nil {
			return err
		}
	}
	for _, f := range l.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.file(f); err != nil {
			return err
		}
	}
	if err := l.applyCopies(ctx, a, cfg.source); err != nil {
		return err
	}
	logger.Info("applied layout", "dir", dir, "created", a.created, "existing", a.kept)
	return nil
}

func (l *Layout) applyCopies(ctx context.Context, a *applier, source string) error {
	if len(l.Copies) == 0 {
		return nil
	}
	if source == "" {
		a.logger.Info("no source root filesystem; skipping copies", "copies", len(l.Copies))
		return nil
	}
	src, err := openDir("source", source)
	if err != nil {
		return err
	}
	defer src.Close()

	c := newCopier(ctx, a, src)
	for _, cp := range l.Copies {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.copy(cp); err != nil {
			return err
		}
	}
	a.logger.Info("copied from source", "source", source, "missing", c.missing, "libraries", len(c.libs))
	return nil
}

// openDir opens dir as a root. A missing path or a non-directory is an
// input error.
func openDir(what, dir string) (*os.Root, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s directory: %w", stagetype.ErrInput, what, err)
		}
		return nil, fmt.Errorf("%w: %s directory: %w", stagetype.ErrIO, what, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s directory %s is not a directory", stagetype.ErrInput, what, dir)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s directory: %w", stagetype.ErrIO, what, err)
	}
	return root, nil
}

func conflict(path, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s: %s", stagetype.ErrInput, ErrConflict, path, fmt.Sprintf(format, args...))
}

func (a *applier) fail(op, path string, err error) error {
	return stagetype.NewEntryError(path, fmt.Errorf("%s: %w", op, err))
}

// mkdirAll creates p and its missing parents. Existing components may be
// directories or symlinks that resolve to directories inside the root.
func (a *applier) mkdirAll(p string, mode Mode) (bool, error) {
	parts := strings.Split(p, "/")
	created := false
	for i := range parts {
		cur := strings.Join(parts[:i+1], "/")
		last := i == len(parts)-1

		info, err := a.root.Stat(cur)
		switch {
		case err == nil && info.IsDir():
			continue
		case err == nil:
			return false, conflict(cur, "exists and is not a directory")
		case !errors.Is(err, fs.ErrNotExist):
			return false, a.fail("stat", cur, err)
		}
		if _, err := a.root.Lstat(cur); err == nil {
			return false, conflict(cur, "dangling symlink where a directory belongs")
		}

		m := DefaultDirMode
		if last {
			m = mode
		}
		if err := a.root.Mkdir(cur, 0o700); err != nil {
			return false, a.fail("mkdir", cur, err)
		}
		if err := a.root.Chmod(cur, stagetype.FileModeFromMode(uint32(m))); err != nil {
			return false, a.fail("chmod", cur, err)
		}
		a.logger.Debug("created directory", "path", cur)
		created = last
	}
	return created, nil
}

func (a *applier) count(created bool) {
	if created {
		a.created++
	} else {
		a.kept++
	}
}

func (a *applier) parent(p string) error {
	parent := stagetype.Parent(p)
	if parent == stagetype.RootPath || parent == "" {
		return nil
	}
	_, err := a.mkdirAll(parent, DefaultDirMode)
	return err
}

func (a *applier) dir(d Dir) error {
	created, err := a.mkdirAll(d.Path, d.Mode)
	if err != nil {
		return err
	}
	a.count(created)
	return nil
}

func (a *applier) symlink(s Symlink) error {
	if err := a.parent(s.Path); err != nil {
		return err
	}

	info, err := a.root.Lstat(s.Path)
	switch {
	case err == nil && info.Mode()&fs.ModeSymlink != 0:
		target, err := a.root.Readlink(s.Path)
		if err != nil {
			return a.fail("readlink", s.Path, err)
		}
		if target != s.Target {
			return conflict(s.Path, "symlink points to %q, want %q", target, s.Target)
		}
		a.count(false)
		return nil
	case err == nil && info.IsDir():
		return conflict(s.Path, "is a directory, want symlink to %q", s.Target)
	case err == nil:
		return conflict(s.Path, "exists, want symlink to %q", s.Target)
	case !errors.Is(err, fs.ErrNotExist):
		return a.fail("lstat", s.Path, err)
	}

	if err := a.root.Symlink(s.Target, s.Path); err != nil {
		return a.fail("symlink", s.Path, err)
	}
	a.logger.Debug("created symlink", "path", s.Path, "target", s.Target)
	a.count(true)
	return nil
}

func (a *applier) file(f File) error {
	if err := a.parent(f.Path); err != nil {
		return err
	}

	info, err := a.root.Lstat(f.Path)
	switch {
	case err == nil && info.Mode().IsRegular():
		a.count(false)
		return nil
	case err == nil:
		return conflict(f.Path, "exists and is not a regular file")
	case !errors.Is(err, fs.ErrNotExist):
		return a.fail("lstat", f.Path, err)
	}

	out, err := a.root.OpenFile(f.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return a.fail("create", f.Path, err)
	}
	if _, err := out.WriteString(f.Content); err != nil {
		out.Close()
		return a.fail("write", f.Path, err)
	}
	if err := out.Close(); err != nil {
		return a.fail("close", f.Path, err)
	}
	if err := a.root.Chmod(f.Path, stagetype.FileModeFromMode(uint32(f.Mode))); err != nil {
		return a.fail("chmod", f.Path, err)
	}
	a.logger.Debug("created file", "path", f.Path, "bytes", len(f.Content))
	a.count(true)
	return nil
}
