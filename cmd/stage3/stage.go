package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/stage3"
	"github.com/meigma/stage3/rootfs"
)

func newStageCmd(g *globals) *cobra.Command {
	var (
		layoutPath string
		from       string
		printOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "stage [DIR]",
		Short: "Create the base filesystem layout in a staging directory",
		Long: `Stage creates the directories, merged /usr links and /etc configuration
of a root filesystem below DIR. With --from it also copies the programs,
their shared libraries, systemd units and data listed in the layout's copy
section out of a source root filesystem. Existing entries are left
untouched; a path that exists with the wrong type is reported and nothing
is removed.

With --print the layout is written to stdout as YAML instead; edit it and
pass it back with --layout.`,
		Args: cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := rootfs.DefaultLayout()
			if layoutPath != "" {
				var err error
				if layout, err = rootfs.LoadLayout(layoutPath); err != nil {
					return err
				}
			}
			if printOnly {
				return layout.Encode(cmd.OutOrStdout())
			}
			if len(args) != 1 {
				return fmt.Errorf("%w: DIR is required unless --print is set", stage3.ErrInput)
			}
			opts := []rootfs.ApplyOption{rootfs.ApplyWithLogger(g.logger(cmd.ErrOrStderr()))}
			if from != "" {
				opts = append(opts, rootfs.ApplyWithSource(from))
			}
			return layout.Apply(cmd.Context(), args[0], opts...)
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "YAML layout file (default: built-in merged-/usr layout)")
	cmd.Flags().StringVar(&from, "from", "", "source root filesystem for the layout's copy section")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the layout instead of applying it")
	return cmd
}
