package stagetype

// ProgressEvent represents a progress update during build or verify.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// BytesDone is the number of content bytes completed so far.
	BytesDone uint64

	// EntriesDone is the number of entries completed so far.
	EntriesDone int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageWalking indicates the source tree is being enumerated.
	StageWalking ProgressStage = iota

	// StageWriting indicates entries are being written to the archive.
	StageWriting

	// StageVerifying indicates an archive is being verified.
	StageVerifying
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageWalking:
		return "walking"
	case StageWriting:
		return "writing"
	case StageVerifying:
		return "verifying"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates.
// It is called from the goroutine driving the operation.
type ProgressFunc func(ProgressEvent)
