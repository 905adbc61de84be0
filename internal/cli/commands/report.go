package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/aggregate"
	"github.com/lcdc/cutlog/pkg/cache"
	"github.com/lcdc/cutlog/pkg/output"
)

// Report views selectable with --view.
const (
	ViewAll       = "all"
	ViewSummary   = "summary"
	ViewDaily     = "daily"
	ViewJobs      = "jobs"
	ViewThickness = "thickness"
	ViewIdle      = "idle"
)

// ReportOptions holds command-line options for the report command.
type ReportOptions struct {
	Output  string
	Verbose bool
	Quiet   bool
	From    string
	To      string
	Views   []string
	Sort    string
	Top     int
	NoCache bool
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	opts := &ReportOptions{}

	cmd := &cobra.Command{
		Use:   "report <config-file>",
		Short: "Show production metrics from committed records",
		Long: `Compute production views over the committed cut records.

Views:
  summary    period KPIs: plates, jobs, active days, productivity
  daily      per-day totals and averages
  jobs       per job and board dimensions
  thickness  per board thickness
  idle       per-day machine span, productive and idle time

Results are cached for the configured TTL (Redis when cache.redis_addr is set).

Example:
  cutlog report cutlog.yaml
  cutlog report --view jobs --sort total_time --top 10 cutlog.yaml
  cutlog report --from 2024-03-01 --to 2024-03-31 -o json cutlog.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose output")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().StringVar(&opts.From, "from", "", "First process date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Last process date to include (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&opts.Views, "view", []string{ViewAll}, "Views to show (all|summary|daily|jobs|thickness|idle, can be repeated)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "plates", "Job ordering (plates|records|total_time|avg_duration)")
	cmd.Flags().IntVar(&opts.Top, "top", 0, "Limit the job view to the first N rows (0 = all)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Bypass the report cache")

	return cmd
}

func runReport(cmd *cobra.Command, args []string, opts *ReportOptions) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	started := time.Now()

	rng, err := parseRange(opts.From, opts.To)
	if err != nil {
		return err
	}
	sort, err := aggregate.ParseJobSort(opts.Sort)
	if err != nil {
		return err
	}
	if opts.Top < 0 {
		return fmt.Errorf("--top must not be negative")
	}
	views, err := parseViews(opts.Views)
	if err != nil {
		return err
	}

	formatter, err := createFormatter(opts.Output, opts.Verbose, opts.Quiet)
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

	var reader aggregate.Reader = aggregate.NewEngine(st,
		aggregate.WithHighlightThickness(cfg.Report.HighlightThicknessMM),
		aggregate.WithLogger(log),
	)
	if !opts.NoCache {
		cs, err := cache.Open(cfg.Cache, log)
		if err != nil {
			log.Warn("report cache unavailable, computing directly", "error", err)
		} else {
			defer cs.Close()
			reader = cache.NewReader(reader, cs, cfg.Cache.TTL, log)
		}
	}

	jobOpts := aggregate.JobOptions{Sort: sort, Top: opts.Top}
	rep, err := reader.Report(ctx, rng, jobOpts)
	if err != nil {
		return fmt.Errorf("computing report: %w", err)
	}
	selectViews(rep, views)

	report := output.NewProductionReport(rep, rng.String(), configPath, started)
	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	return nil
}

func parseViews(names []string) (map[string]bool, error) {
	views := map[string]bool{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		switch n {
		case ViewAll:
			for _, v := range []string{ViewSummary, ViewDaily, ViewJobs, ViewThickness, ViewIdle} {
				views[v] = true
			}
		case ViewSummary, ViewDaily, ViewJobs, ViewThickness, ViewIdle:
			views[n] = true
		default:
			return nil, fmt.Errorf("invalid --view %q (must be all, summary, daily, jobs, thickness, or idle)", n)
		}
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("--view: at least one view is required")
	}
	return views, nil
}

// selectViews drops the views that were not asked for.
func selectViews(r *aggregate.Report, views map[string]bool) {
	if !views[ViewSummary] {
		r.Summary = nil
	}
	if !views[ViewDaily] {
		r.Daily = nil
	}
	if !views[ViewJobs] {
		r.Jobs = nil
	}
	if !views[ViewThickness] {
		r.Thickness = nil
	}
	if !views[ViewIdle] {
		r.Idle = nil
	}
}
