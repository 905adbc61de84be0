// Package cli provides the command-line interface for cutlog.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cutlog",
		Short: "Ingest board-cutting machine logs and report production metrics",
		Long: `cutlog loads the log files written by a panel saw into a database,
exactly once per file, and reports production metrics from them.

It provides:
  - Batch or watch-mode ingestion with archiving of processed files
  - Daily, per-job, per-thickness and idle-time production views
  - Layout detection for unknown log files
  - Migration and SQL export of committed records`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewIngestCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
