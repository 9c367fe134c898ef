package stage3

import (
	"github.com/meigma/stage3/internal/format"
	"github.com/meigma/stage3/internal/stagetype"
)

// --- Re-exports from stagetype ---

// Entry represents one filesystem object in an archive.
type Entry = stagetype.Entry

// Kind identifies the type of filesystem object an entry describes.
type Kind = stagetype.Kind

// Special refines entries of KindOther.
type Special = stagetype.Special

// Compression identifies the transform applied to the archive stream.
type Compression = stagetype.Compression

// EntryError describes a failure tied to a single path.
type EntryError = stagetype.EntryError

// ArchiveInfo is the archive-wide metadata stored at the start of a stream.
type ArchiveInfo = format.StreamInfo

// Kind constants.
const (
	KindRegular   = stagetype.KindRegular
	KindDirectory = stagetype.KindDirectory
	KindSymlink   = stagetype.KindSymlink
	KindOther     = stagetype.KindOther
)

// Special constants.
const (
	SpecialNone        = stagetype.SpecialNone
	SpecialCharDevice  = stagetype.SpecialCharDevice
	SpecialBlockDevice = stagetype.SpecialBlockDevice
	SpecialFIFO        = stagetype.SpecialFIFO
	SpecialSocket      = stagetype.SpecialSocket
	SpecialIrregular   = stagetype.SpecialIrregular
)

// Compression constants.
const (
	CompressionNone = stagetype.CompressionNone
	CompressionGzip = stagetype.CompressionGzip
	CompressionZstd = stagetype.CompressionZstd
	CompressionXz   = stagetype.CompressionXz
)

// Unix special permission bits.
const (
	ModeSetuid = stagetype.ModeSetuid
	ModeSetgid = stagetype.ModeSetgid
	ModeSticky = stagetype.ModeSticky
)

// RootPath is the archive path of the source root directory.
const RootPath = stagetype.RootPath

// ParseCompression parses a compression name such as "zstd" or "xz".
var ParseCompression = stagetype.ParseCompression

// ValidatePath reports whether p can be stored as an archive path.
var ValidatePath = stagetype.ValidatePath

// DefaultArchiveName returns the conventional file name for an archive
// written with compression c, for example "stage3.stg3.zst".
func DefaultArchiveName(c Compression) string {
	const base = "stage3.stg3"
	if ext := c.Extension(); ext != "" {
		return base + "." + ext
	}
	return base
}
