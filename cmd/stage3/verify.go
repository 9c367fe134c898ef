package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/stage3"
)

// maxReportedPaths bounds the offending paths printed per check.
const maxReportedPaths = 20

func newVerifyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "verify ARCHIVE",
		Short: "Check archive structure and content digests",
		Long: `Verify reads ARCHIVE once and checks that the first entry is the root
directory, that every path is safe to extract and appears once, that
parents precede their children, and that every file matches its digest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := stage3.Verify(cmd.Context(), args[0],
				stage3.VerifyWithLogger(g.logger(cmd.ErrOrStderr())))
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

func printReport(w io.Writer, r *stage3.Report) {
	fmt.Fprintf(w, "%d entries, %s of content, %s\n", r.Entries, humanize.IBytes(r.ContentBytes), r.Compression)
	for _, c := range r.Checks {
		status := "ok"
		if !c.Passed {
			status = "FAILED"
		}
		fmt.Fprintf(w, "  %-12s %s\n", c.Class, status)
		for i, p := range c.Paths {
			if i == maxReportedPaths {
				fmt.Fprintf(w, "      ... and %d more\n", len(c.Paths)-i)
				break
			}
			fmt.Fprintf(w, "      %s\n", p)
		}
	}
}
