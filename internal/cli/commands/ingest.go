package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/cache"
	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/ingest"
	"github.com/lcdc/cutlog/pkg/logger"
	"github.com/lcdc/cutlog/pkg/metrics"
	"github.com/lcdc/cutlog/pkg/output"
	"github.com/lcdc/cutlog/pkg/store"
	"github.com/lcdc/cutlog/pkg/webhook"
)

// IngestOptions holds command-line options for the ingest command.
type IngestOptions struct {
	Output  string
	Verbose bool
	Quiet   bool
	DryRun  bool
	Watch   bool
	Layout  string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest <config-file>",
		Short: "Load new machine log files into the record store",
		Long: `Scan the input directory for new log files, commit each file's records
in one transaction and move it into the archive directory.

Malformed lines are reported and skipped; the rest of the file is committed.
A file whose name is already in the archive is skipped. Content already
committed under another name is recognised by checksum and only archived.

With --watch, runs once and then again whenever files appear in the input
directory, until interrupted.

Exit codes:
  0 - All files handled
  1 - One or more files failed (read, commit or archive)
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "List rejected lines and archive names")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Parse and report without committing or archiving")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Keep running and ingest files as they arrive")
	cmd.Flags().StringVar(&opts.Layout, "layout", "", "Override the configured layout (standard|wincut|auto)")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_failures", "When to fire webhook (on_failures|always|never)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, opts *IngestOptions) error {
	configPath := args[0]
	ctx := commandContext(cmd)

	if opts.Watch && opts.DryRun {
		return fmt.Errorf("--watch and --dry-run cannot be combined")
	}

	cfg, log, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	layout := cfg.Layout
	if opts.Layout != "" {
		layout = opts.Layout
	}
	resolve, err := layoutResolver(layout)
	if err != nil {
		return err
	}

	formatter, err := createFormatter(opts.Output, opts.Verbose, opts.Quiet)
	if err != nil {
		return err
	}

	webhooks, err := collectWebhooks(cfg, opts)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer st.Close()

	orch := ingest.New(cfg.InputDir, cfg.ArchiveDir, st, log,
		ingest.WithDryRun(opts.DryRun),
		ingest.WithPattern(cfg.FilePattern),
		ingest.WithLayoutResolver(resolve),
	)

	h := &runHandler{
		ctx:        ctx,
		out:        cmd.OutOrStdout(),
		cfg:        cfg,
		configPath: configPath,
		formatter:  formatter,
		notifier:   webhook.NewNotifier(webhooks, log),
		store:      st,
		log:        log,
	}
	if !opts.DryRun {
		h.cache = openCacheForInvalidation(cfg.Cache, log)
		if h.cache != nil {
			defer h.cache.Close()
		}
	}

	if opts.Watch {
		wctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		h.ctx = wctx
		// Each run reports on its own; a failed run does not end watching.
		return orch.Watch(wctx, cfg.Watch.Debounce, func(r *ingest.Report, err error) {
			h.handle(r, err)
		})
	}

	report, runErr := orch.Run(ctx)
	if err := h.handle(report, runErr); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("ingestion aborted: %w", runErr)
	}
	return nil
}

// runHandler publishes one run's report: output, metrics, cache
// invalidation and webhooks.
type runHandler struct {
	ctx        context.Context
	out        io.Writer
	cfg        *config.Config
	configPath string
	formatter  output.Formatter
	notifier   *webhook.Notifier
	store      *store.Store
	cache      cache.Store
	log        *logger.Logger
}

func (h *runHandler) handle(r *ingest.Report, runErr error) error {
	if r == nil {
		h.log.Error("ingestion run failed", "error", runErr)
		return runErr
	}

	report := output.NewIngestReport(r, h.configPath)
	if err := h.formatter.Format(h.ctx, report, h.out); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if r.Changed() && h.cache != nil {
		if err := h.cache.Clear(h.ctx); err != nil {
			h.log.Warn("report cache invalidation failed", "error", err)
		}
	}

	if path := h.cfg.Metrics.Textfile; path != "" && !r.DryRun {
		stored := int64(-1)
		if n, err := h.store.CountRecords(h.ctx); err == nil {
			stored = n
		}
		if err := metrics.WriteTextfile(path, r, stored); err != nil {
			h.log.Warn("writing metrics textfile failed", "path", path, "error", err)
		}
	}

	h.notifier.Notify(h.ctx, report)

	if report.HasIssues() {
		ExitCode = 1
	}
	return nil
}

// openCacheForInvalidation connects to the shared report cache. Only a
// Redis cache outlives this process, so the in-process one is skipped.
func openCacheForInvalidation(cfg config.CacheConfig, log *logger.Logger) cache.Store {
	if cfg.RedisAddr == "" {
		return nil
	}
	st, err := cache.Open(cfg, log)
	if err != nil {
		log.Warn("report cache unavailable, cached reports may be stale until TTL", "error", err)
		return nil
	}
	return st
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *IngestOptions) ([]config.WebhookConfig, error) {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnFailures
		}
		switch trigger {
		case config.WebhookTriggerOnFailures, config.WebhookTriggerAlways, config.WebhookTriggerNever:
		default:
			return nil, fmt.Errorf("invalid --webhook-trigger %q (must be on_failures, always, or never)", trigger)
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks, nil
}
