// Package main implements the conductor CLI: bootstrap the context index,
// watch the working tree, and inspect orchestrator state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conductor/internal/logging"
)

var (
	// Global flags
	workspace  string
	configPath string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "conductor - multi-agent task orchestrator",
	Long: `conductor orchestrates coding-agent fleets: tasks route to one or
more agents, their proposals go through consensus, and a live context index
of the project backs every decision.

State lives in a single SQLite database under the workspace.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}
			workspace = wd
		}
		level := "info"
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(workspace, level); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: <workspace>/.conductor/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
