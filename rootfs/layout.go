// Package rootfs prepares a staging directory before it is archived.
//
// A Layout lists the directories, symbolic links and small files every
// root filesystem needs, plus the entries to take from a source root
// filesystem. DefaultLayout describes a merged-/usr system; custom layouts
// are read from YAML with LoadLayout.
package rootfs

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meigma/stage3/internal/stagetype"
)

//go:embed default.yaml
var defaultLayout []byte

// ErrConflict is returned when a path already exists with a different type
// or link target than the layout requires.
var ErrConflict = errors.New("rootfs: existing path conflicts with layout")

// Default modes for entries that do not set one.
const (
	DefaultDirMode  Mode = 0o755
	DefaultFileMode Mode = 0o644
)

// Mode is a unix permission mode. In YAML it is written as an octal
// string such as "0755" or "1777".
type Mode uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: mode must be a scalar", node.Line)
	}
	s := strings.TrimPrefix(strings.TrimPrefix(node.Value, "0o"), "0O")
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v&^uint64(stagetype.ModeMask) != 0 {
		return fmt.Errorf("line %d: invalid mode %q", node.Line, node.Value)
	}
	*m = Mode(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m Mode) MarshalYAML() (any, error) {
	return fmt.Sprintf("%04o", uint32(m)), nil
}

// Dir is a directory to create.
type Dir struct {
	Path string `yaml:"path"`
	Mode Mode   `yaml:"mode,omitempty"`
}

// Symlink is a symbolic link to create. Target is stored verbatim.
type Symlink struct {
	Path   string `yaml:"path"`
	Target string `yaml:"target"`
}

// File is a small regular file to create.
type File struct {
	Path    string `yaml:"path"`
	Mode    Mode   `yaml:"mode,omitempty"`
	Content string `yaml:"content"`
}

// Copy takes entries from a source root filesystem. From is relative to
// the source, To to the staging directory and defaults to From. When
// Names is set, From and To are directories and only the named children
// are copied. Directories are copied recursively; symlinks are recreated
// with the same target.
type Copy struct {
	From  string   `yaml:"from"`
	To    string   `yaml:"to,omitempty"`
	Names []string `yaml:"names,omitempty"`
	// Libs also copies the shared libraries an ELF file needs, found by
	// soname in the source library directories.
	Libs bool `yaml:"libs,omitempty"`
	// Optional skips source entries that do not exist.
	Optional bool `yaml:"optional,omitempty"`
}

// Layout describes the skeleton of a root filesystem. Paths are
// slash-separated and relative to the staging directory.
type Layout struct {
	Dirs     []Dir     `yaml:"dirs"`
	Symlinks []Symlink `yaml:"symlinks"`
	Files    []File    `yaml:"files"`
	Copies   []Copy    `yaml:"copy,omitempty"`
}

// DefaultLayout returns the built-in merged-/usr layout.
func DefaultLayout() *Layout {
	l, err := ParseLayout(strings.NewReader(string(defaultLayout)))
	if err != nil {
		panic(fmt.Sprintf("rootfs: built-in layout: %v", err))
	}
	return l
}

// LoadLayout reads a YAML layout from path.
func LoadLayout(path string) (*Layout, error) {
	f, err := os.Open(path) //nolint:gosec // layout path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("%w: open layout: %w", stagetype.ErrInput, err)
	}
	defer f.Close()
	return ParseLayout(f)
}

// ParseLayout decodes a YAML layout and validates it. Unknown fields are
// rejected.
func ParseLayout(r io.Reader) (*Layout, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var l Layout
	if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode layout: %w", stagetype.ErrInput, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks that every path is a clean relative path that appears
// once, and fills in default modes and copy destinations. Copy
// destinations may overlap other entries.
func (l *Layout) Validate() error {
	seen := make(map[string]struct{})
	check := func(kind, p string) error {
		if p == stagetype.RootPath {
			return fmt.Errorf("%w: layout %s may not be the root", stagetype.ErrInput, kind)
		}
		if err := stagetype.ValidatePath(p); err != nil {
			return fmt.Errorf("%w: layout %s: %w", stagetype.ErrInput, kind, err)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: layout lists %s twice", stagetype.ErrInput, p)
		}
		seen[p] = struct{}{}
		return nil
	}

	for i := range l.Dirs {
		if err := check("directory", l.Dirs[i].Path); err != nil {
			return err
		}
		if l.Dirs[i].Mode == 0 {
			l.Dirs[i].Mode = DefaultDirMode
		}
	}
	for _, s := range l.Symlinks {
		if err := check("symlink", s.Path); err != nil {
			return err
		}
		if s.Target == "" || strings.IndexByte(s.Target, 0) >= 0 {
			return fmt.Errorf("%w: symlink %s has an invalid target", stagetype.ErrInput, s.Path)
		}
	}
	for i := range l.Files {
		if err := check("file", l.Files[i].Path); err != nil {
			return err
		}
		if l.Files[i].Mode == 0 {
			l.Files[i].Mode = DefaultFileMode
		}
	}
	for i := range l.Copies {
		if err := l.Copies[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Copy) validate() error {
	if c.To == "" {
		c.To = c.From
	}
	for _, p := range []string{c.From, c.To} {
		if p == stagetype.RootPath {
			return fmt.Errorf("%w: layout copy may not name the root", stagetype.ErrInput)
		}
		if err := stagetype.ValidatePath(p); err != nil {
			return fmt.Errorf("%w: layout copy: %w", stagetype.ErrInput, err)
		}
	}
	seen := make(map[string]struct{}, len(c.Names))
	for _, name := range c.Names {
		if name == stagetype.RootPath || strings.Contains(name, "/") || stagetype.ValidatePath(name) != nil {
			return fmt.Errorf("%w: layout copy from %s: invalid name %q", stagetype.ErrInput, c.From, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: layout copy from %s lists %s twice", stagetype.ErrInput, c.From, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Encode writes l as YAML.
func (l *Layout) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("%w: encode layout: %w", stagetype.ErrIO, err)
	}
	return enc.Close()
}
