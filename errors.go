package stage3

import (
	"errors"

	"github.com/meigma/stage3/internal/format"
	"github.com/meigma/stage3/internal/stagetype"
)

// Error classes re-exported from stagetype.
var (
	// ErrInput is returned for caller misuse: a missing or invalid source
	// root, a missing archive, or an invalid option.
	ErrInput = stagetype.ErrInput

	// ErrIO is returned when reading or writing fails.
	ErrIO = stagetype.ErrIO

	// ErrEncoding is returned when a path or metadata value cannot be
	// represented in an archive.
	ErrEncoding = stagetype.ErrEncoding

	// ErrFormat is returned when an archive is malformed or truncated.
	ErrFormat = stagetype.ErrFormat

	// ErrVerificationFailed is returned when a well-formed archive fails
	// content or structure checks.
	ErrVerificationFailed = stagetype.ErrVerificationFailed
)

// ErrContentChanged is returned when a file changed while it was being
// archived.
var ErrContentChanged = format.ErrContentChanged

// ErrTooManyEntries is returned when a build exceeds BuildWithMaxEntries.
var ErrTooManyEntries = errors.New("stage3: too many entries")

// Process exit codes returned by ExitCode.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitInput              = 2
	ExitFormat             = 3
	ExitIO                 = 4
	ExitVerificationFailed = 5
	ExitEncoding           = 6
)

// ExitCode maps an error to a process exit code. Errors without a class,
// including context cancellation, map to ExitFailure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrVerificationFailed):
		return ExitVerificationFailed
	case errors.Is(err, ErrInput):
		return ExitInput
	case errors.Is(err, ErrFormat):
		return ExitFormat
	case errors.Is(err, ErrEncoding):
		return ExitEncoding
	case errors.Is(err, ErrIO):
		return ExitIO
	default:
		return ExitFailure
	}
}
