package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/stage3"
	"github.com/meigma/stage3/internal/prefetch"
)

type buildFlags struct {
	compression   string
	level         int
	deterministic bool
	skipErrors    bool
	workers       int
	inlineLimit   int64
	readAhead     int64
	atomic        bool
	exclude       []string
	maxEntries    int
}

func newBuildCmd(g *globals) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build SOURCE [OUTPUT]",
		Short: "Archive a staged root filesystem",
		Long: `Build walks SOURCE and writes an archive to OUTPUT.

If OUTPUT is omitted or names a directory, the archive is written there as
stage3.stg3 with the extension of the selected compression.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := "."
			if len(args) == 2 {
				out = args[1]
			}
			return runBuild(cmd, g, f, args[0], out)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.compression, "compression", "c", "zstd", "compression: none, gzip, zstd or xz")
	flags.IntVarP(&f.level, "level", "l", 0, "compression level (0 selects the default)")
	flags.BoolVar(&f.deterministic, "deterministic", false, "produce byte-identical output for identical trees")
	flags.BoolVar(&f.skipErrors, "skip-errors", false, "skip unreadable paths instead of aborting")
	flags.IntVarP(&f.workers, "workers", "j", runtime.GOMAXPROCS(0), "number of hashing workers")
	flags.Int64Var(&f.inlineLimit, "inline-limit", prefetch.DefaultInlineLimit, "largest file read into memory while hashing")
	flags.Int64Var(&f.readAhead, "read-ahead", prefetch.DefaultReadAheadBytes, "memory budget for prefetched file content")
	flags.BoolVar(&f.atomic, "atomic", true, "write to a temporary file and rename on success")
	flags.StringSliceVarP(&f.exclude, "exclude", "x", nil, "path to leave out, relative to SOURCE (repeatable)")
	flags.IntVar(&f.maxEntries, "max-entries", 0, "fail if the tree has more entries (0 means unlimited)")
	return cmd
}

// outputPath resolves OUTPUT to a file name.
func outputPath(out string, c stage3.Compression) string {
	if strings.HasSuffix(out, string(filepath.Separator)) {
		return filepath.Join(out, stage3.DefaultArchiveName(c))
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, stage3.DefaultArchiveName(c))
	}
	return out
}

// excludeSet matches archive paths named on the command line.
func excludeSet(paths []string) stage3.ExcludeFunc {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = path.Clean(strings.TrimLeft(filepath.ToSlash(p), "/"))
		set[p] = struct{}{}
	}
	return func(p string) bool {
		_, ok := set[p]
		return ok
	}
}

func runBuild(cmd *cobra.Command, g *globals, f *buildFlags, src, out string) error {
	c, err := stage3.ParseCompression(f.compression)
	if err != nil {
		return err
	}
	policy := stage3.OnEntryErrorAbort
	if f.skipErrors {
		policy = stage3.OnEntryErrorSkip
	}

	opts := []stage3.BuildOption{
		stage3.BuildWithCompression(c),
		stage3.BuildWithCompressionLevel(f.level),
		stage3.BuildWithDeterministic(f.deterministic),
		stage3.BuildWithOnEntryError(policy),
		stage3.BuildWithWorkers(f.workers),
		stage3.BuildWithInlineLimit(f.inlineLimit),
		stage3.BuildWithReadAheadBytes(f.readAhead),
		stage3.BuildWithAtomicOutput(f.atomic),
		stage3.BuildWithMaxEntries(f.maxEntries),
		stage3.BuildWithLogger(g.logger(cmd.ErrOrStderr())),
	}
	if len(f.exclude) > 0 {
		opts = append(opts, stage3.BuildWithExclude(excludeSet(f.exclude)))
	}

	out = outputPath(out, c)
	sum, err := stage3.Build(cmd.Context(), src, out, opts...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "wrote %s\n", out)
	fmt.Fprintf(w, "  entries:  %d (%d files, %d dirs, %d symlinks, %d other)\n",
		sum.Entries, sum.Files, sum.Dirs, sum.Symlinks, sum.Other)
	fmt.Fprintf(w, "  content:  %s\n", humanize.IBytes(sum.ContentBytes))
	fmt.Fprintf(w, "  archive:  %s (%s)\n", humanize.IBytes(sum.ArchiveBytes), sum.Compression)
	fmt.Fprintf(w, "  digest:   %s\n", sum.Digest)
	fmt.Fprintf(w, "  elapsed:  %s\n", sum.Elapsed.Round(1e6))
	for _, skipped := range sum.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", skipped)
	}
	return nil
}
