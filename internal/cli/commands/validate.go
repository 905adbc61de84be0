package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/ingest"
	"github.com/lcdc/cutlog/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a cutlog configuration file without ingesting anything.

Checks:
  - YAML syntax
  - Required fields (input_dir, archive_dir, database)
  - Layout, driver and webhook settings
  - Input directory contents (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	printf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return err
	}

	printf(w, "\nConfiguration valid!\n")
	printf(w, "  Input:    %s\n", cfg.InputDir)
	printf(w, "  Archive:  %s\n", cfg.ArchiveDir)
	printf(w, "  Layout:   %s\n", cfg.Layout)
	printf(w, "  Database: %s\n", cfg.Database.Driver)
	if cfg.Cache.RedisAddr != "" {
		printf(w, "  Cache:    redis %s (ttl %s)\n", cfg.Cache.RedisAddr, cfg.Cache.TTL)
	} else {
		printf(w, "  Cache:    in-process (ttl %s)\n", cfg.Cache.TTL)
	}
	printf(w, "  Webhooks: %d\n", len(cfg.Webhooks))

	// Candidate files are warnings only; an empty input directory is normal.
	files, err := parser.ListCandidates(cfg.InputDir, cfg.FilePattern)
	if err != nil {
		printf(w, "\nWarning: %v\n", err)
		return nil
	}
	archived, err := ingest.NewArchive(cfg.ArchiveDir).Index()
	if err != nil {
		printf(w, "\nWarning: %v\n", err)
		archived = map[string]bool{}
	}

	pending := 0
	for _, f := range files {
		if !archived[filepath.Base(f)] {
			pending++
		}
	}
	printf(w, "\nCandidate files: %d (%d new, %d already archived)\n", len(files), pending, len(files)-pending)
	for _, f := range files {
		mark := ""
		if archived[filepath.Base(f)] {
			mark = " (archived)"
		}
		printf(w, "  - %s%s\n", filepath.Base(f), mark)
	}

	return nil
}
