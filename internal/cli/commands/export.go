package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/export"
)

// ExportOptions holds command-line options for the export command.
type ExportOptions struct {
	Out       string
	Table     string
	From      string
	To        string
	BatchSize int
	Force     bool
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export <config-file>",
		Short: "Write committed records as a SQL INSERT script",
		Long: `Write the committed cut records as multi-row INSERT statements that can be
run against another database. Every stored column except the id is written,
so the script loads into a migrated cutlog store.

Example:
  cutlog export cutlog.yaml > records.sql
  cutlog export --out records.sql --table cortes_seccionadora cutlog.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "Write to file instead of stdout (will not overwrite without --force)")
	cmd.Flags().StringVar(&opts.Table, "table", "cut_records", "Target table name")
	cmd.Flags().StringVar(&opts.From, "from", "", "First process date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Last process date to include (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", export.DefaultBatchSize, "Rows per INSERT statement")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite --out if it exists")

	return cmd
}

func runExport(cmd *cobra.Command, args []string, opts *ExportOptions) error {
	configPath := args[0]
	ctx := commandContext(cmd)

	rng, err := parseRange(opts.From, opts.To)
	if err != nil {
		return err
	}

	cfg, log, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openReadStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer st.Close()

	total := int64(-1)
	if rng.IsZero() {
		if total, err = st.CountRecords(ctx); err != nil {
			return err
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.Out != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if opts.Force {
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		// #nosec G304 - output path is provided by user via CLI
		f, err := os.OpenFile(opts.Out, flags, 0o644)
		if err != nil {
			return fmt.Errorf("opening output: %w", err)
		}
		defer f.Close()
		w = f
	}

	src, err := st.Records(ctx, rng)
	if err != nil {
		return err
	}
	defer src.Close()

	n, err := export.SQL(ctx, src, w, export.Options{
		Table:     opts.Table,
		BatchSize: opts.BatchSize,
		Total:     total,
	})
	if err != nil {
		return err
	}

	if n == 0 {
		log.Warn("no records to export")
	}
	if opts.Out != "" {
		printf(cmd.ErrOrStderr(), "Exported %d records to %s\n", n, opts.Out)
	}
	return nil
}
