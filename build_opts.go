package stage3

import (
	"log/slog"
	"runtime"

	"github.com/meigma/stage3/internal/prefetch"
)

// OnEntryError selects what a build does when a single path cannot be
// archived (unreadable file, unlistable directory, unrepresentable name).
type OnEntryError uint8

const (
	// OnEntryErrorAbort stops the build at the first failing path.
	OnEntryErrorAbort OnEntryError = iota

	// OnEntryErrorSkip leaves the path out and records it in
	// Summary.Skipped.
	OnEntryErrorSkip
)

// String returns the policy name.
func (p OnEntryError) String() string {
	switch p {
	case OnEntryErrorAbort:
		return "abort"
	case OnEntryErrorSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ExcludeFunc reports whether an archive path should be left out of a
// build. Excluded directories are not descended into.
type ExcludeFunc func(path string) bool

// buildConfig holds configuration for archive creation.
type buildConfig struct {
	compression    Compression
	level          int
	deterministic  bool
	onEntryError   OnEntryError
	workers        int
	inlineLimit    int64
	readAheadBytes int64
	atomic         bool
	exclude        []ExcludeFunc
	maxEntries     int
	logger         *slog.Logger
	progress       ProgressFunc
}

func defaultBuildConfig() buildConfig {
	return buildConfig{
		compression:    CompressionZstd,
		workers:        runtime.GOMAXPROCS(0),
		inlineLimit:    prefetch.DefaultInlineLimit,
		readAheadBytes: prefetch.DefaultReadAheadBytes,
	}
}

// BuildOption configures archive creation.
type BuildOption func(*buildConfig)

// BuildWithCompression sets the transform applied to the archive stream.
// The default is CompressionZstd.
func BuildWithCompression(c Compression) BuildOption {
	return func(cfg *buildConfig) {
		cfg.compression = c
	}
}

// BuildWithCompressionLevel sets the compression level. Zero selects the
// codec default. zstd accepts 1-22 and gzip 1-9; xz ignores the level.
func BuildWithCompressionLevel(level int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.level = level
	}
}

// BuildWithDeterministic makes the archive a pure function of the tree
// contents and metadata: modification times are zeroed, no build id or
// creation time is recorded, and the codec runs single-threaded.
func BuildWithDeterministic(deterministic bool) BuildOption {
	return func(cfg *buildConfig) {
		cfg.deterministic = deterministic
	}
}

// BuildWithOnEntryError sets the per-path failure policy. The default is
// OnEntryErrorAbort.
func BuildWithOnEntryError(policy OnEntryError) BuildOption {
	return func(cfg *buildConfig) {
		cfg.onEntryError = policy
	}
}

// BuildWithWorkers sets the number of goroutines hashing files ahead of the
// writer. Values <= 1 hash on the writing goroutine. The default is
// GOMAXPROCS.
func BuildWithWorkers(n int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.workers = n
	}
}

// BuildWithInlineLimit sets the largest file read into memory once while
// hashing. Larger files are read twice: once to hash, once to write.
func BuildWithInlineLimit(n int64) BuildOption {
	return func(cfg *buildConfig) {
		cfg.inlineLimit = n
	}
}

// BuildWithReadAheadBytes bounds the memory held by file contents read
// ahead of the writer.
func BuildWithReadAheadBytes(n int64) BuildOption {
	return func(cfg *buildConfig) {
		cfg.readAheadBytes = n
	}
}

// BuildWithAtomicOutput makes Build write to a temporary file next to the
// output and rename it into place on success. Without it a failed build
// leaves a partial archive behind.
func BuildWithAtomicOutput(atomic bool) BuildOption {
	return func(cfg *buildConfig) {
		cfg.atomic = atomic
	}
}

// BuildWithExclude adds predicates for paths to leave out, such as the
// mount points of pseudo filesystems. A path is excluded if any predicate
// returns true.
func BuildWithExclude(fns ...ExcludeFunc) BuildOption {
	return func(cfg *buildConfig) {
		cfg.exclude = append(cfg.exclude, fns...)
	}
}

// BuildWithMaxEntries limits the number of entries in the archive.
// Zero or negative means no limit.
func BuildWithMaxEntries(n int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.maxEntries = n
	}
}

// BuildWithLogger sets the logger for build operations.
func BuildWithLogger(logger *slog.Logger) BuildOption {
	return func(cfg *buildConfig) {
		cfg.logger = logger
	}
}

// BuildWithProgress sets a callback to receive progress updates.
func BuildWithProgress(fn ProgressFunc) BuildOption {
	return func(cfg *buildConfig) {
		cfg.progress = fn
	}
}
