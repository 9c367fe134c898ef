package rootfs

import (
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/meigma/stage3/internal/file"
	"github.com/meigma/stage3/internal/stagetype"
)

// libDirs are searched in order for a shared library by soname.
var libDirs = []string{"usr/lib64", "usr/lib", "lib64", "lib"}

// copier takes entries from a source root filesystem.
type copier struct {
	*applier
	ctx     context.Context
	src     *os.Root
	buf     []byte
	libs    map[string]struct{}
	missing int
}

func newCopier(ctx context.Context, a *applier, src *os.Root) *copier {
	return &copier{
		applier: a,
		ctx:     ctx,
		src:     src,
		buf:     make([]byte, file.DefaultBufferSize),
		libs:    make(map[string]struct{}),
	}
}

func (c *copier) copy(cp Copy) error {
	if len(cp.Names) == 0 {
		return c.entry(cp.From, cp.To, cp)
	}
	for _, name := range cp.Names {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		if err := c.entry(cp.From+"/"+name, cp.To+"/"+name, cp); err != nil {
			return err
		}
	}
	return nil
}

func (c *copier) entry(from, to string, cp Copy) error {
	info, err := c.src.Lstat(from)
	if errors.Is(err, fs.ErrNotExist) {
		if cp.Optional {
			c.missing++
			c.logger.Debug("source entry missing", "path", from)
			return nil
		}
		return fmt.Errorf("%w: copy: %s does not exist in the source", stagetype.ErrInput, from)
	}
	if err != nil {
		return c.fail("lstat source", from, err)
	}
	if err := c.parent(to); err != nil {
		return err
	}
	if err := c.tree(from, to, info); err != nil {
		return err
	}
	if cp.Libs && info.Mode().IsRegular() {
		return c.libraries(from)
	}
	return nil
}

// tree copies from to to. Directories are merged into existing ones.
func (c *copier) tree(from, to string, info fs.FileInfo) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	switch mode := info.Mode(); {
	case mode.IsDir():
		return c.copyDir(from, to, info)
	case mode&fs.ModeSymlink != 0:
		target, err := c.src.Readlink(from)
		if err != nil {
			return c.fail("readlink source", from, err)
		}
		return c.symlink(Symlink{Path: to, Target: target})
	case mode.IsRegular():
		return c.copyFile(from, to, mode)
	default:
		c.logger.Warn("skipping special file", "path", from, "mode", mode.String())
		return nil
	}
}

func (c *copier) copyDir(from, to string, info fs.FileInfo) error {
	created, err := c.mkdirAll(to, Mode(stagetype.ModeFromFileMode(info.Mode())))
	if err != nil {
		return err
	}
	c.count(created)

	d, err := c.src.Open(from)
	if err != nil {
		return c.fail("open source", from, err)
	}
	children, err := d.ReadDir(-1)
	d.Close()
	if err != nil {
		return c.fail("read source directory", from, err)
	}
	slices.SortFunc(children, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	for _, child := range children {
		info, err := child.Info()
		if err != nil {
			return c.fail("lstat source", from+"/"+child.Name(), err)
		}
		if err := c.tree(from+"/"+child.Name(), to+"/"+child.Name(), info); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies a regular file's content and permission bits. A regular file
// already at to is kept.
func (c *copier) copyFile(from, to string, mode fs.FileMode) error {
	info, err := c.root.Lstat(to)
	switch {
	case err == nil && info.Mode().IsRegular():
		c.count(false)
		return nil
	case err == nil:
		return conflict(to, "exists and is not a regular file")
	case !errors.Is(err, fs.ErrNotExist):
		return c.fail("lstat", to, err)
	}

	in, err := c.src.Open(from)
	if err != nil {
		return c.fail("open source", from, err)
	}
	defer in.Close()

	out, err := c.root.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return c.fail("create", to, err)
	}
	n, err := file.CopyWithContext(c.ctx, out, in, c.buf)
	if err != nil {
		out.Close()
		return c.fail("copy", to, err)
	}
	if err := out.Close(); err != nil {
		return c.fail("close", to, err)
	}
	perm := mode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
	if err := c.root.Chmod(to, perm); err != nil {
		return c.fail("chmod", to, err)
	}
	c.logger.Debug("copied file", "from", from, "to", to, "bytes", n)
	c.count(true)
	return nil
}

// libraries copies the shared libraries the ELF file at p needs, and
// theirs in turn. Libraries that cannot be found are logged and skipped.
func (c *copier) libraries(p string) error {
	queue := []string{p}
	for len(queue) > 0 {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		cur := queue[0]
		queue = queue[1:]

		needed, runpath, err := c.elfDeps(cur)
		if err != nil {
			return err
		}
		for _, name := range needed {
			if _, done := c.libs[name]; done {
				continue
			}
			c.libs[name] = struct{}{}

			found, info, ok := c.findLibrary(name, runpath)
			if !ok {
				c.logger.Warn("shared library not found", "library", name, "needed_by", cur)
				continue
			}
			dest := stagingLibDir(path.Dir(found)) + "/" + name
			if err := c.parent(dest); err != nil {
				return err
			}
			if err := c.copyFile(found, dest, info.Mode()); err != nil {
				return err
			}
			queue = append(queue, found)
		}
	}
	return nil
}

// elfDeps returns the sonames p needs, its program interpreter included,
// and its run path directories. Files that are not ELF need nothing.
func (c *copier) elfDeps(p string) (needed, runpath []string, err error) {
	f, err := c.src.Open(p)
	if err != nil {
		return nil, nil, c.fail("open source", p, err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		c.logger.Debug("not an ELF file", "path", p)
		return nil, nil, nil
	}
	defer ef.Close()

	needed, err = ef.ImportedLibraries()
	if err != nil {
		return nil, nil, c.fail("read dynamic section", p, err)
	}
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}
		interp, err := io.ReadAll(prog.Open())
		if err != nil {
			return nil, nil, c.fail("read interpreter", p, err)
		}
		needed = append(needed, path.Base(strings.TrimRight(string(interp), "\x00")))
	}

	for _, tag := range []elf.DynTag{elf.DT_RUNPATH, elf.DT_RPATH} {
		values, err := ef.DynString(tag)
		if err != nil {
			return nil, nil, c.fail("read dynamic section", p, err)
		}
		for _, v := range values {
			for dir := range strings.SplitSeq(v, ":") {
				// $ORIGIN and friends only mean something at load time.
				if dir == "" || strings.Contains(dir, "$") {
					continue
				}
				dir = path.Clean(strings.TrimPrefix(dir, "/"))
				if stagetype.ValidatePath(dir) == nil && dir != stagetype.RootPath {
					runpath = append(runpath, dir)
				}
			}
		}
	}
	return needed, runpath, nil
}

func (c *copier) findLibrary(name string, runpath []string) (string, fs.FileInfo, bool) {
	for _, dir := range slices.Concat(runpath, libDirs) {
		p := dir + "/" + name
		info, err := c.src.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, info, true
		}
	}
	return "", nil, false
}

// stagingLibDir maps a source library directory onto the merged-/usr
// staging tree.
func stagingLibDir(dir string) string {
	for _, top := range []string{"lib64", "lib"} {
		if dir == top || strings.HasPrefix(dir, top+"/") {
			return "usr/" + dir
		}
	}
	return dir
}
