// Package stage3 builds, lists and verifies stage3 archives: compressed,
// permission-faithful snapshots of a base operating-system tree that an
// installer later extracts verbatim onto a fresh target.
//
// An archive is a single stream. Every filesystem object becomes one
// header record (path, kind, mode, owner, size, link target, checksum)
// followed, for regular files, by exactly size content bytes. The whole
// stream is wrapped in one compression transform (zstd by default; gzip,
// xz or none on request). Readers detect the transform from its magic
// bytes.
//
// # Building
//
//	sum, err := stage3.Build(ctx, "/var/tmp/stage", "stage3.stg3.zst",
//	    stage3.BuildWithDeterministic(true),
//	    stage3.BuildWithOnEntryError(stage3.OnEntryErrorSkip),
//	)
//
// Entries are written in pre-order with the children of each directory
// sorted byte-wise, so a directory always precedes its contents. Symbolic
// links are stored, never followed. Files are hashed ahead of the writer on
// a bounded worker pool; the archive layout does not depend on the number
// of workers.
//
// # Listing and verifying
//
//	entries, err := stage3.List(ctx, "stage3.stg3.zst")
//
//	report, err := stage3.Verify(ctx, "stage3.stg3.zst")
//	if errors.Is(err, stage3.ErrVerificationFailed) {
//	    for _, c := range report.Failed() {
//	        fmt.Println(c.Class, c.Paths)
//	    }
//	}
//
// Neither operation touches the filesystem beyond reading the archive.
//
// # Errors
//
// Every error wraps one of [ErrInput], [ErrIO], [ErrEncoding], [ErrFormat]
// or [ErrVerificationFailed]. [ExitCode] maps them to process exit codes.
package stage3

//go:generate flatc --go --go-namespace fb -o internal schema/stage3.fbs
