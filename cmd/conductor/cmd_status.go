package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"conductor/internal/store"
	"conductor/internal/types"
)

// statusCmd prints a snapshot of the index and task state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and task state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("workspace: %s\n\n", workspace)

	// Context index
	files, err := a.db.ActiveFileStates(ctx)
	if err != nil {
		return err
	}
	var chunks int64
	if err := a.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return err
	}
	fmt.Println("context index")
	fmt.Printf("  files:      %d\n", len(files))
	fmt.Printf("  chunks:     %d\n", chunks)
	if a.embedder != nil {
		n, err := a.db.CountEmbeddings(ctx, a.embedder.Name())
		if err != nil {
			return err
		}
		fmt.Printf("  embeddings: %d (%s)\n", n, a.embedder.Name())
	} else {
		fmt.Println("  embeddings: disabled")
	}

	// Bootstrap progress, when a run has happened
	progress, err := a.bootstrapper().Tracker().GetProgress(ctx)
	if err != nil {
		return err
	}
	if progress.Total > 0 {
		fmt.Printf("\nbootstrap: %d/%d done, %d failed, %d pending\n",
			progress.Completed, progress.Total, progress.Failed, progress.Pending)
	}

	// Tasks
	fmt.Println("\ntasks")
	for _, status := range []types.TaskStatus{
		types.StatusPending, types.StatusInProgress, types.StatusWaitingInput,
		types.StatusCompleted, types.StatusFailed,
	} {
		tasks, err := a.db.ListTasksByStatus(ctx, status)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			continue
		}
		fmt.Printf("  %-13s %d\n", status, len(tasks))
	}

	// In-flight background jobs
	running, err := a.db.JobsByStatus(ctx, store.JobRunning)
	if err != nil {
		return err
	}
	for _, j := range running {
		fmt.Printf("\njob %s (%s) running since %s\n", j.ID, j.Kind, j.StartedAt.Format(time.RFC3339))
	}
	return nil
}
