package stage3

import "github.com/meigma/stage3/internal/stagetype"

// Re-export progress types from stagetype.
type (
	// ProgressEvent represents a progress update during build or verify.
	ProgressEvent = stagetype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = stagetype.ProgressStage

	// ProgressFunc receives progress updates. It is called from the
	// goroutine running the operation.
	ProgressFunc = stagetype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageWalking indicates the source tree is being enumerated.
	StageWalking = stagetype.StageWalking

	// StageWriting indicates entries are being written to the archive.
	StageWriting = stagetype.StageWriting

	// StageVerifying indicates an archive is being verified.
	StageVerifying = stagetype.StageVerifying
)

func reportProgress(fn ProgressFunc, stage ProgressStage, path string, bytesDone uint64, entriesDone int) {
	if fn == nil {
		return
	}
	fn(ProgressEvent{
		Stage:       stage,
		Path:        path,
		BytesDone:   bytesDone,
		EntriesDone: entriesDone,
	})
}
