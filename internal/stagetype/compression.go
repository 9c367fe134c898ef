package stagetype

import "fmt"

// Compression identifies the transform applied to the whole archive stream.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionXz
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionXz:
		return "xz"
	default:
		return "unknown"
	}
}

// Extension returns the conventional file name suffix for the algorithm,
// without a leading dot. CompressionNone has no suffix.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return "gz"
	case CompressionZstd:
		return "zst"
	case CompressionXz:
		return "xz"
	default:
		return ""
	}
}

// Valid returns nil if c is a known algorithm.
func (c Compression) Valid() error {
	switch c {
	case CompressionNone, CompressionGzip, CompressionZstd, CompressionXz:
		return nil
	}
	return fmt.Errorf("%w: unknown compression %d", ErrInput, c)
}

// ParseCompression parses a compression name as printed by String.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "xz":
		return CompressionXz, nil
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrInput, s)
}
