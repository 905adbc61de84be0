package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/cache"
	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/detector"
	"github.com/lcdc/cutlog/pkg/ingest"
	"github.com/lcdc/cutlog/pkg/logger"
	"github.com/lcdc/cutlog/pkg/parser"
	"github.com/lcdc/cutlog/pkg/store"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// Diagnostic statuses.
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common setup issues",
		Long: `Diagnose common setup issues before running ingestion.

Checks:
- Config file syntax and structure
- Input and archive directory access
- Layout of pending log files
- Database and cache connectivity
- Webhook settings (connectivity with -v)

Example:
  cutlog diagnose config.yaml
  cutlog diagnose -v config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := runDiagnose(commandContext(cmd), args[0], opts)
			printDiagnostics(cmd.OutOrStdout(), results, opts)
			for _, r := range results {
				if r.Status == statusError {
					ExitCode = 1
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, configPath string, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == statusError {
		return results
	}

	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == statusError {
		return results
	}

	results = append(results, checkInputDir(cfg))
	results = append(results, checkArchiveDir(cfg))
	results = append(results, checkLayouts(ctx, cfg, opts)...)
	results = append(results, checkDatabase(ctx, cfg))
	results = append(results, checkCache(ctx, cfg))
	results = append(results, checkWebhooks(cfg, opts)...)

	return results
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{Check: "Config File"}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = statusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{"Check the file path is correct"}
		return result
	}
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = statusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = statusError
		result.Message = "Config file is empty"
		result.Suggests = []string{"At minimum set input_dir and archive_dir"}
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{Check: "Config Syntax"}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Failed to load config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{"Check YAML syntax - ensure proper indentation (use spaces, not tabs)"}
		}
		return nil, result
	}

	result.Status = statusOK
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Layout: %s", cfg.Layout),
		fmt.Sprintf("Database: %s", cfg.Database.Driver),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return cfg, result
}

func checkInputDir(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{Check: fmt.Sprintf("Input Directory: %s", cfg.InputDir)}

	files, err := parser.ListCandidates(cfg.InputDir, cfg.FilePattern)
	if err != nil {
		result.Status = statusError
		result.Message = err.Error()
		result.Suggests = []string{"Create the directory or fix input_dir"}
		return result
	}

	if len(files) == 0 {
		result.Status = statusWarning
		result.Message = "No candidate files"
		if cfg.FilePattern != "" {
			result.Suggests = []string{fmt.Sprintf("Check file_pattern %q matches the machine's file names", cfg.FilePattern)}
		}
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("%d candidate file(s)", len(files))
	for _, f := range files {
		result.Details = append(result.Details, filepath.Base(f))
	}
	return result
}

func checkArchiveDir(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{Check: fmt.Sprintf("Archive Directory: %s", cfg.ArchiveDir)}

	info, err := os.Stat(cfg.ArchiveDir)
	if os.IsNotExist(err) {
		result.Status = statusWarning
		result.Message = "Does not exist yet (created on first ingest)"
		return result
	}
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot access directory: %v", err)
		return result
	}
	if !info.IsDir() {
		result.Status = statusError
		result.Message = "Path is a file, not a directory"
		return result
	}

	scratch, err := os.CreateTemp(cfg.ArchiveDir, ".cutlog-scratch-*")
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Not writable: %v", err)
		result.Suggests = []string{"Committed files cannot be archived until this is fixed"}
		return result
	}
	_ = scratch.Close()
	_ = os.Remove(scratch.Name())

	index, err := ingest.NewArchive(cfg.ArchiveDir).Index()
	if err != nil {
		result.Status = statusWarning
		result.Message = err.Error()
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Writable, %d archived file(s)", len(index))
	return result
}

// checkLayouts samples each pending file against the configured layout.
func checkLayouts(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	files, err := parser.ListCandidates(cfg.InputDir, cfg.FilePattern)
	if err != nil || len(files) == 0 {
		return nil
	}
	archived, err := ingest.NewArchive(cfg.ArchiveDir).Index()
	if err != nil {
		archived = map[string]bool{}
	}

	det := detector.New(detector.WithSampleSize(20))
	results := []DiagnosticResult{}
	for _, path := range files {
		name := filepath.Base(path)
		if archived[name] && !opts.Verbose {
			continue
		}
		result := DiagnosticResult{Check: fmt.Sprintf("Layout: %s", name)}

		res, err := det.DetectFromFile(ctx, path)
		if err != nil {
			result.Status = statusError
			result.Message = fmt.Sprintf("Cannot read file: %v", err)
			results = append(results, result)
			continue
		}
		if res.SampledLines == 0 {
			result.Status = statusWarning
			result.Message = "File is empty"
			results = append(results, result)
			continue
		}

		best := res.BestMatch()
		switch {
		case best == nil:
			result.Status = statusError
			result.Message = fmt.Sprintf("No known layout parses any of %d sampled line(s)", res.SampledLines)
			result.Suggests = []string{fmt.Sprintf("Run 'cutlog detect %s' for details", path)}
		case cfg.Layout != config.LayoutAuto && best.Layout.Name != cfg.Layout:
			result.Status = statusWarning
			result.Message = fmt.Sprintf("Looks like %s (%.0f%%), configured layout is %s", best.Layout.Name, best.Confidence*100, cfg.Layout)
			result.Suggests = []string{fmt.Sprintf("Set layout: %s or layout: auto", best.Layout.Name)}
		case best.Confidence < 1:
			result.Status = statusWarning
			result.Message = fmt.Sprintf("%s parses %d of %d sampled line(s)", best.Layout.Name, best.MatchCount, res.SampledLines)
			if best.FirstError != "" {
				result.Details = []string{best.FirstError}
			}
		default:
			result.Status = statusOK
			result.Message = fmt.Sprintf("%s (%d sampled line(s))", best.Layout.Name, res.SampledLines)
		}
		if opts.Verbose && best != nil && best.SampleLine != "" {
			result.Details = append(result.Details, "Sample: "+truncate(best.SampleLine, 80))
		}
		results = append(results, result)
	}
	return results
}

func checkDatabase(ctx context.Context, cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{Check: fmt.Sprintf("Database: %s", cfg.Database.Driver)}

	st, err := store.OpenExisting(cfg.Database, logger.Nop())
	if errors.Is(err, store.ErrNoDatabase) {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("No database yet at %s (created on first ingest)", cfg.Database.DSN)
		return result
	}
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot open: %v", err)
		return result
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{"Check database.dsn or " + config.EnvDatabaseDSN}
		return result
	}

	if !st.HasSchema(ctx) {
		result.Status = statusWarning
		result.Message = "Reachable, schema not created yet (created on first ingest)"
		return result
	}

	count, err := st.CountRecords(ctx)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot count records: %v", err)
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Reachable, %d record(s) stored", count)
	return result
}

func checkCache(ctx context.Context, cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{Check: "Report Cache"}

	if cfg.Cache.RedisAddr == "" {
		result.Status = statusOK
		result.Message = fmt.Sprintf("In-process (ttl %s)", cfg.Cache.TTL)
		return result
	}

	st, err := cache.Open(cfg.Cache, logger.Nop())
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Redis at %s unreachable: %v", cfg.Cache.RedisAddr, err)
		result.Suggests = []string{"Reports still work, uncached"}
		return result
	}
	defer st.Close()

	if _, _, err := st.Get(ctx, "diagnose"); err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Redis at %s: %v", cfg.Cache.RedisAddr, err)
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Redis at %s (ttl %s)", cfg.Cache.RedisAddr, cfg.Cache.TTL)
	return result
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  statusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check:   fmt.Sprintf("Webhook: %s", name),
			Status:  statusOK,
			Message: fmt.Sprintf("Trigger: %s", wh.Trigger),
		}

		if opts.Verbose {
			result.Details = append(result.Details,
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout),
			)
			if wh.Token != "" {
				result.Details = append(result.Details, "Token: configured")
			}
		}
		if wh.Trigger == config.WebhookTriggerNever {
			result.Status = statusWarning
			result.Message = "Trigger is never; this webhook is disabled"
		}
		results = append(results, result)

		if opts.Verbose && wh.Trigger != config.WebhookTriggerNever {
			conn := checkWebhookConnectivity(wh)
			conn.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, conn)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}
	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{"Check if the webhook URL is correct"}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = statusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{"The endpoint may only accept POST"}
	}
	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	printf(w, "=== cutlog Diagnostics ===\n\n")

	okCount, warnCount, errCount := 0, 0, 0
	for _, r := range results {
		var icon string
		switch r.Status {
		case statusOK:
			icon = "PASS"
			okCount++
		case statusWarning:
			icon = "WARN"
			warnCount++
		case statusError:
			icon = "FAIL"
			errCount++
		}

		printf(w, "[%s] %s\n", icon, r.Check)
		printf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != statusOK {
			for _, d := range r.Details {
				printf(w, "      - %s\n", d)
			}
		}
		for _, s := range r.Suggests {
			printf(w, "      Hint: %s\n", s)
		}
		printf(w, "\n")
	}

	printf(w, "---\n")
	printf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		printf(w, "\nFix the errors above before ingesting.\n")
	case warnCount > 0:
		printf(w, "\nSetup is usable but has warnings.\n")
	default:
		printf(w, "\nSetup looks good!\n")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
