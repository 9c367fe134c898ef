package stage3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/meigma/stage3/internal/file"
	"github.com/meigma/stage3/internal/stagetype"
)

// CheckClass names one family of verification checks.
type CheckClass string

const (
	// CheckRoot requires the first entry to be the root directory ".".
	CheckRoot CheckClass = "root"

	// CheckPathSafety requires every path to be relative, clean and free
	// of "..", so extraction cannot escape the target.
	CheckPathSafety CheckClass = "path-safety"

	// CheckUniquePaths requires every path to appear once.
	CheckUniquePaths CheckClass = "unique-paths"

	// CheckAncestors requires every parent directory to appear, as a
	// directory, before its children.
	CheckAncestors CheckClass = "ancestors"

	// CheckChecksum requires the content of every regular file to match
	// its recorded sha256 digest.
	CheckChecksum CheckClass = "checksum"
)

var checkOrder = []CheckClass{CheckRoot, CheckPathSafety, CheckUniquePaths, CheckAncestors, CheckChecksum}

// CheckResult is the outcome of one check class.
type CheckResult struct {
	Class  CheckClass
	Passed bool

	// Paths lists the offending entries, in archive order.
	Paths []string
}

// Report is the outcome of verifying an archive.
type Report struct {
	// Entries is the number of entries read.
	Entries int

	// ContentBytes is the total content size checked.
	ContentBytes uint64

	// Compression is the detected compression transform.
	Compression Compression

	// Info is the archive-wide metadata.
	Info ArchiveInfo

	// Checks holds one result per check class.
	Checks []CheckResult
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass.
func (r *Report) Failed() []CheckResult {
	var failed []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Err returns an error wrapping ErrVerificationFailed that names the
// failed checks, or nil if the archive passed.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, len(failed))
	for i, c := range failed {
		parts[i] = fmt.Sprintf("%s (%d paths)", c.Class, len(c.Paths))
	}
	return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(parts, ", "))
}

// verifyConfig holds configuration for verification.
type verifyConfig struct {
	logger   *slog.Logger
	progress ProgressFunc
}

// VerifyOption configures verification.
type VerifyOption func(*verifyConfig)

// VerifyWithLogger sets the logger for verification.
func VerifyWithLogger(logger *slog.Logger) VerifyOption {
	return func(cfg *verifyConfig) {
		cfg.logger = logger
	}
}

// VerifyWithProgress sets a callback to receive progress updates.
func VerifyWithProgress(fn ProgressFunc) VerifyOption {
	return func(cfg *verifyConfig) {
		cfg.progress = fn
	}
}

// Verify checks the archive at path without extracting it.
//
// The archive is read once. A structurally unreadable archive fails with
// ErrFormat and no report. Otherwise the report is always returned; if any
// check failed the error wraps ErrVerificationFailed.
func Verify(ctx context.Context, path string, opts ...VerifyOption) (*Report, error) {
	r, err := openFile(path, allowUnsafePaths())
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return verifyArchive(ctx, r, opts)
}

// VerifyFrom checks the archive stream r. See Verify.
func VerifyFrom(ctx context.Context, r io.Reader, opts ...VerifyOption) (*Report, error) {
	ar, err := newReader(r, allowUnsafePaths())
	if err != nil {
		return nil, err
	}
	defer ar.Close()
	return verifyArchive(ctx, ar, opts)
}

// verifier accumulates check results while streaming an archive.
type verifier struct {
	failures map[CheckClass][]string
	seen     map[string]struct{}
	dirs     map[string]struct{}
	buf      []byte
}

func verifyArchive(ctx context.Context, r *Reader, opts []VerifyOption) (*Report, error) {
	var cfg verifyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	v := &verifier{
		failures: make(map[CheckClass][]string),
		seen:     make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		buf:      make([]byte, file.DefaultBufferSize),
	}
	report := &Report{Compression: r.Compression(), Info: r.Info()}
	logger.Info("verifying archive", "compression", report.Compression.String())

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		v.checkStructure(e, report.Entries == 0)
		if e.Kind == KindRegular {
			if err := v.checkContent(ctx, e, r.Content()); err != nil {
				return nil, err
			}
			report.ContentBytes += e.Size
		}
		report.Entries++
		reportProgress(cfg.progress, StageVerifying, e.Path, report.ContentBytes, report.Entries)
	}
	if report.Entries == 0 {
		v.fail(CheckRoot, RootPath)
	}

	for _, class := range checkOrder {
		paths := v.failures[class]
		report.Checks = append(report.Checks, CheckResult{Class: class, Passed: len(paths) == 0, Paths: paths})
	}
	if err := report.Err(); err != nil {
		logger.Info("verification failed", "entries", report.Entries, "error", err)
		return report, err
	}
	logger.Info("archive verified", "entries", report.Entries, "content_bytes", report.ContentBytes)
	return report, nil
}

func (v *verifier) fail(class CheckClass, path string) {
	v.failures[class] = append(v.failures[class], path)
}

func (v *verifier) checkStructure(e *Entry, first bool) {
	if first && (e.Path != RootPath || e.Kind != KindDirectory) {
		v.fail(CheckRoot, e.Path)
	}

	safe := stagetype.ValidatePath(e.Path) == nil
	if !safe {
		v.fail(CheckPathSafety, e.Path)
	}

	if _, dup := v.seen[e.Path]; dup {
		v.fail(CheckUniquePaths, e.Path)
	}
	v.seen[e.Path] = struct{}{}

	// Ancestry is only meaningful for paths that passed the safety check.
	if safe && e.Path != RootPath {
		if _, ok := v.dirs[stagetype.Parent(e.Path)]; !ok {
			v.fail(CheckAncestors, e.Path)
		}
	}
	if e.Kind == KindDirectory {
		v.dirs[e.Path] = struct{}{}
	}
}

func (v *verifier) checkContent(ctx context.Context, e *Entry, content io.Reader) error {
	hr := file.NewHashingReader(content)
	if _, err := file.CopyWithContext(ctx, io.Discard, hr, v.buf); err != nil {
		return err
	}
	if hr.Digest() != e.Checksum {
		v.fail(CheckChecksum, e.Path)
	}
	return nil
}
