package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/stage3"
)

func newListCmd(_ *globals) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "List the entries of an archive in archive order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := stage3.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries, long)
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show mode, owner, size and time")
	return cmd
}

func printEntries(w io.Writer, entries []stage3.Entry, long bool) error {
	if !long {
		for i := range entries {
			fmt.Fprintln(w, describePath(&entries[i]))
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', tabwriter.AlignRight)
	for i := range entries {
		e := &entries[i]
		size := fmt.Sprint(e.Size)
		if e.Kind == stage3.KindOther && e.DevMajor|e.DevMinor != 0 {
			size = fmt.Sprintf("%d,%d", e.DevMajor, e.DevMinor)
		}
		mtime := "-"
		if !e.ModTime.IsZero() {
			mtime = e.ModTime.UTC().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t %s\t %s\n", e.FileMode(), e.UID, e.GID, size, mtime, describePath(e))
	}
	return tw.Flush()
}

func describePath(e *stage3.Entry) string {
	if e.Kind == stage3.KindSymlink {
		return e.Path + " -> " + e.LinkTarget
	}
	return e.Path
}
