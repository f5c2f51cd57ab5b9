package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var bootstrapReset bool

// bootstrapCmd bulk-indexes the workspace.
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Index the whole workspace into the context database",
	Long: `Scans the workspace, prioritizes files (build manifests and source
first), and indexes every file: chunking, optional embeddings, change
tracking. Progress is durable; an interrupted run resumes where it stopped.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().BoolVar(&bootstrapReset, "reset", false, "discard prior progress and start over")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b := a.bootstrapper()
	if bootstrapReset {
		if err := b.Tracker().Reset(ctx); err != nil {
			return err
		}
		fmt.Println("progress reset")
	}

	progress, err := b.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Printf("interrupted: %d/%d files done, run again to resume\n",
				progress.Completed, progress.Total)
			return nil
		}
		return err
	}

	fmt.Printf("bootstrap complete: %d files (%d failed)\n", progress.Completed, progress.Failed)
	if progress.Failed > 0 {
		fmt.Println("failures are recorded in the bootstrap_errors table")
	}
	return nil
}
