package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/config"
)

// MigrateOptions holds command-line options for the migrate command.
type MigrateOptions struct {
	ToDriver  string
	ToDSN     string
	BatchSize int
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate <config-file>",
		Short: "Copy committed records into another database",
		Long: `Copy every cut record and ingested-file marker from the configured store
into a target store, creating the target schema if needed.

Rows the target already holds are left untouched, so an interrupted
migration can simply be run again.

Example:
  cutlog migrate --to-driver postgres --to-dsn "$TARGET_DSN" cutlog.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ToDriver, "to-driver", "postgres", "Target driver (sqlite|postgres)")
	cmd.Flags().StringVar(&opts.ToDSN, "to-dsn", "", "Target DSN (required)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 500, "Records per insert batch")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string, opts *MigrateOptions) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	start := time.Now()

	if opts.ToDSN == "" {
		return fmt.Errorf("--to-dsn is required")
	}

	cfg, log, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	target := config.DatabaseConfig{
		Driver:        opts.ToDriver,
		DSN:           opts.ToDSN,
		SlowThreshold: cfg.Database.SlowThreshold,
	}
	if target.Driver == cfg.Database.Driver && target.DSN == cfg.Database.DSN {
		return fmt.Errorf("target database is the configured database")
	}

	src, err := openReadStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := openStore(ctx, target, log.With("role", "target"))
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	defer dst.Close()

	res, err := src.Copy(ctx, dst, opts.BatchSize)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	total, err := dst.CountRecords(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printf(w, "Migrated %s -> %s in %s\n", src.Driver(), dst.Driver(), since(start))
	printf(w, "  Records read:     %d\n", res.Read)
	printf(w, "  Records copied:   %d\n", res.RecordsCopied)
	printf(w, "  Already present:  %d\n", res.AlreadyPresent)
	printf(w, "  File markers:     %d\n", res.FilesCopied)
	printf(w, "  Target total:     %d\n", total)
	return nil
}
