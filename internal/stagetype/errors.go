package stagetype

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the stage3 API wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	// ErrInput is returned for caller misuse: a missing or invalid source
	// root, or a missing archive.
	ErrInput = errors.New("stage3: invalid input")

	// ErrIO is returned when reading or writing fails.
	ErrIO = errors.New("stage3: i/o error")

	// ErrEncoding is returned when a path or metadata value cannot be
	// represented in the archive format.
	ErrEncoding = errors.New("stage3: unrepresentable metadata")

	// ErrFormat is returned when an archive is malformed or truncated.
	ErrFormat = errors.New("stage3: malformed archive")

	// ErrVerificationFailed is returned when a well-formed archive fails
	// content or structure checks.
	ErrVerificationFailed = errors.New("stage3: verification failed")
)

var classes = []error{ErrInput, ErrIO, ErrEncoding, ErrFormat, ErrVerificationFailed}

// EntryError describes a failure tied to a single archive path.
type EntryError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *EntryError) Unwrap() error {
	return e.Err
}

// NewEntryError wraps err for path, classifying it first.
func NewEntryError(path string, err error) *EntryError {
	return &EntryError{Path: path, Err: Classify(err)}
}

// HasClass reports whether err already wraps one of the error classes.
func HasClass(err error) bool {
	for _, class := range classes {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}

// Classify maps an unclassified error to ErrIO. Errors that already carry a
// class are returned unchanged. The original error stays reachable through
// errors.Is and errors.As.
func Classify(err error) error {
	if err == nil || HasClass(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

// Errorf returns an error of the given class with a formatted message.
func Errorf(class error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", class, fmt.Sprintf(format, args...))
}
