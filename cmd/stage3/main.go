// Command stage3 builds, lists and verifies stage3 root filesystem archives.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/meigma/stage3"
)

// version is set at link time.
var version = "dev"

// globals holds flags shared by every subcommand.
type globals struct {
	verbose bool
	json    bool
}

func (g *globals) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if g.json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "stage3",
		Short: "Build and check stage3 root filesystem archives",
		Long: `stage3 packs a staged root filesystem into a single archive that records
every path with its type, permissions, ownership, link target and a sha256
digest of file content.

Exit codes: 0 success, 2 invalid input, 3 malformed archive, 4 i/o error,
5 verification failed, 6 unrepresentable metadata, 1 anything else.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug details to stderr")
	root.PersistentFlags().BoolVar(&g.json, "log-json", false, "log as JSON instead of text")

	root.AddCommand(
		newBuildCmd(g),
		newListCmd(g),
		newVerifyCmd(g),
		newStageCmd(g),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(version))
	stop()
	os.Exit(stage3.ExitCode(err))
}
