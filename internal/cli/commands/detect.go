package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/detector"
	"github.com/lcdc/cutlog/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output     string
	SampleSize int
	ShowAll    bool
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>...",
		Short: "Detect the line layout of machine log files",
		Long: `Sample log files and report which line layout parses them.

Each known layout is tried against the sampled lines. The layout that parses
the most lines wins and a configuration snippet is printed.

Known layouts:
  standard   14 comma-separated fields
  wincut     KEY= prefixed machine export, 17+ fields

Example:
  cutlog detect /data/in/batch_0310.txt
  cutlog detect --all '/data/in/*.txt'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all matching layouts, not just the best match")

	return cmd
}

// DetectedFile pairs a file with its detection result.
type DetectedFile struct {
	File   string
	Result *detector.DetectionResult
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	ctx := commandContext(cmd)

	files, err := parser.ExpandGlobs(args)
	if err != nil {
		return err
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	var results []DetectedFile
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			return fmt.Errorf("log file not found: %s", f)
		}
		result, err := d.DetectFromFile(ctx, f)
		if err != nil {
			return fmt.Errorf("detection failed for %s: %w", f, err)
		}
		results = append(results, DetectedFile{File: f, Result: result})
	}

	w := cmd.OutOrStdout()
	switch opts.Output {
	case "json":
		return outputDetectJSON(w, results, opts)
	case "text", "":
		for _, r := range results {
			outputDetectText(w, r.Result, r.File, opts)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) {
	fmt.Fprintln(w, "=== Layout Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No known layout detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Expected one of:")
		for _, l := range parser.Layouts() {
			fmt.Fprintf(w, "  %-9s %s\n", l.Name, l.Example)
		}
		fmt.Fprintln(w)
		return
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Layout: %s (%s)\n", best.Layout.Name, best.Layout.Description)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines parsed)\n",
		best.Confidence*100, best.MatchCount, result.SampledLines)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleLine)
	if best.FirstError != "" {
		fmt.Fprintf(w, "First rejected line: %s\n", best.FirstError)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Configuration snippet (copy to your config file) ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "layout: %s\n", best.Layout.Name)
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Alternative layouts ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence)\n", i+2, m.Layout.Name, m.Confidence*100)
		}
		fmt.Fprintln(w)
	}
}

// JSONMatch represents a layout match in JSON output.
type JSONMatch struct {
	Layout     string  `json:"layout"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	SampleLine string  `json:"sample_line"`
	FirstError string  `json:"first_error,omitempty"`
}

// JSONOutput represents the detection result of one file.
type JSONOutput struct {
	File         string      `json:"file"`
	Matches      []JSONMatch `json:"matches"`
	SampledLines int         `json:"sampled_lines"`
}

func outputDetectJSON(w io.Writer, results []DetectedFile, opts *DetectOptions) error {
	out := make([]JSONOutput, 0, len(results))
	for _, r := range results {
		o := JSONOutput{
			File:         r.File,
			SampledLines: r.Result.SampledLines,
			Matches:      make([]JSONMatch, 0),
		}

		matches := r.Result.Matches
		if !opts.ShowAll && len(matches) > 1 {
			matches = matches[:1] // Only show best match
		}
		for _, m := range matches {
			o.Matches = append(o.Matches, JSONMatch{
				Layout:     m.Layout.Name,
				Confidence: m.Confidence,
				MatchCount: m.MatchCount,
				SampleLine: m.SampleLine,
				FirstError: m.FirstError,
			})
		}
		out = append(out, o)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
