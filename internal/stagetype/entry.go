package stagetype

import (
	"io/fs"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/stage3/internal/platform"
)

// RootPath is the archive path of the source root directory.
const RootPath = "."

// Kind identifies the type of filesystem object an entry describes.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRegular
	KindDirectory
	KindSymlink
	KindOther
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a kind that may appear in an archive.
func (k Kind) Valid() bool {
	return k >= KindRegular && k <= KindOther
}

// Special refines KindOther entries.
type Special uint8

const (
	SpecialNone Special = iota
	SpecialCharDevice
	SpecialBlockDevice
	SpecialFIFO
	SpecialSocket
	SpecialIrregular
)

// String returns the human-readable name of the special type.
func (s Special) String() string {
	switch s {
	case SpecialNone:
		return ""
	case SpecialCharDevice:
		return "chardev"
	case SpecialBlockDevice:
		return "blockdev"
	case SpecialFIFO:
		return "fifo"
	case SpecialSocket:
		return "socket"
	case SpecialIrregular:
		return "irregular"
	default:
		return "unknown"
	}
}

// Unix special permission bits as stored in archives.
const (
	ModeSetuid uint32 = 0o4000
	ModeSetgid uint32 = 0o2000
	ModeSticky uint32 = 0o1000

	// ModeMask covers every bit an entry mode may carry.
	ModeMask uint32 = 0o7777
)

// Entry represents one filesystem object in the archive.
type Entry struct {
	// Path is the slash-separated path relative to the archive root.
	// The root directory itself is ".".
	Path string

	// Kind is the type of filesystem object.
	Kind Kind

	// Special refines KindOther entries (devices, fifos, sockets).
	Special Special

	// Mode holds the unix permission bits, including setuid, setgid and sticky.
	Mode uint32

	// UID is the numeric owner.
	UID uint32

	// GID is the numeric group.
	GID uint32

	// Size is the content length in bytes. Zero for non-regular kinds.
	Size uint64

	// LinkTarget is the raw, unresolved symlink target.
	LinkTarget string

	// DevMajor and DevMinor identify device nodes.
	DevMajor uint32
	DevMinor uint32

	// ModTime is the modification time. Zero in deterministic archives.
	ModTime time.Time

	// Checksum is the sha256 digest of the content (regular files only).
	Checksum digest.Digest

	// ContentOffset is the offset of the content within the decompressed
	// archive stream (regular files only).
	ContentOffset uint64
}

// NewEntry builds an entry from lstat-style file info.
// The link target of symlinks is not read; callers fill it in.
func NewEntry(path string, info fs.FileInfo) Entry {
	fm := info.Mode()
	e := Entry{
		Path:    path,
		Mode:    ModeFromFileMode(fm),
		ModTime: info.ModTime(),
	}
	e.UID, e.GID = platform.FileOwner(info)

	switch fm.Type() {
	case 0:
		e.Kind = KindRegular
		if info.Size() > 0 {
			e.Size = uint64(info.Size())
		}
	case fs.ModeDir:
		e.Kind = KindDirectory
	case fs.ModeSymlink:
		e.Kind = KindSymlink
	default:
		e.Kind = KindOther
		e.Special = specialFromFileMode(fm)
		if e.Special == SpecialCharDevice || e.Special == SpecialBlockDevice {
			e.DevMajor, e.DevMinor = platform.DeviceNumbers(info)
		}
	}
	return e
}

func specialFromFileMode(fm fs.FileMode) Special {
	switch {
	case fm&fs.ModeCharDevice != 0:
		return SpecialCharDevice
	case fm&fs.ModeDevice != 0:
		return SpecialBlockDevice
	case fm&fs.ModeNamedPipe != 0:
		return SpecialFIFO
	case fm&fs.ModeSocket != 0:
		return SpecialSocket
	default:
		return SpecialIrregular
	}
}

// ModeFromFileMode converts Go file mode bits to unix permission bits.
func ModeFromFileMode(fm fs.FileMode) uint32 {
	mode := uint32(fm.Perm())
	if fm&fs.ModeSetuid != 0 {
		mode |= ModeSetuid
	}
	if fm&fs.ModeSetgid != 0 {
		mode |= ModeSetgid
	}
	if fm&fs.ModeSticky != 0 {
		mode |= ModeSticky
	}
	return mode
}

// FileModeFromMode converts unix permission bits to Go file mode bits.
// Type bits are not included.
func FileModeFromMode(mode uint32) fs.FileMode {
	fm := fs.FileMode(mode & 0o777)
	if mode&ModeSetuid != 0 {
		fm |= fs.ModeSetuid
	}
	if mode&ModeSetgid != 0 {
		fm |= fs.ModeSetgid
	}
	if mode&ModeSticky != 0 {
		fm |= fs.ModeSticky
	}
	return fm
}

// FileMode returns the entry's type and permission bits as an fs.FileMode.
func (e *Entry) FileMode() fs.FileMode {
	fm := FileModeFromMode(e.Mode)
	switch e.Kind {
	case KindDirectory:
		fm |= fs.ModeDir
	case KindSymlink:
		fm |= fs.ModeSymlink
	case KindOther:
		switch e.Special {
		case SpecialCharDevice:
			fm |= fs.ModeDevice | fs.ModeCharDevice
		case SpecialBlockDevice:
			fm |= fs.ModeDevice
		case SpecialFIFO:
			fm |= fs.ModeNamedPipe
		case SpecialSocket:
			fm |= fs.ModeSocket
		default:
			fm |= fs.ModeIrregular
		}
	}
	return fm
}

// Equal reports whether two entries describe the same filesystem object.
//
// Only structural metadata is compared: content offset, checksum and
// modification time are properties of a particular archive, not of the
// object itself.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Path == other.Path &&
		e.Kind == other.Kind &&
		e.Special == other.Special &&
		e.Mode == other.Mode &&
		e.UID == other.UID &&
		e.GID == other.GID &&
		e.Size == other.Size &&
		e.LinkTarget == other.LinkTarget &&
		e.DevMajor == other.DevMajor &&
		e.DevMinor == other.DevMinor
}
