package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"conductor/internal/watcher"
)

var watchBootstrapFirst bool

// stopGrace bounds how long shutdown waits for in-flight work.
const stopGrace = 5 * time.Second

// watchCmd keeps the index in sync with the working tree.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and index changes as they happen",
	Long: `Starts the file watcher daemon: file events are debounced per path,
filtered against the configured extensions and ignore patterns, and indexed
in batches. Runs until interrupted; pending changes flush on shutdown.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchBootstrapFirst, "bootstrap", false, "run a full bootstrap before watching")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if watchBootstrapFirst {
		progress, err := a.bootstrapper().Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("bootstrap complete: %d files (%d failed)\n", progress.Completed, progress.Failed)
	}

	d, err := watcher.New(a.cfg.Context, a.indexer, workspace)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("watching %s (ctrl-c to stop)\n", workspace)

	<-ctx.Done()
	fmt.Println("stopping...")
	d.Stop(stopGrace)
	return nil
}
