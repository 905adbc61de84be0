package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lcdc/cutlog/pkg/aggregate"
	"github.com/lcdc/cutlog/pkg/ingest"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	if report.Ingest != nil {
		if err := f.formatIngest(report.Ingest, w); err != nil {
			return err
		}
	}
	if report.Production != nil {
		if report.Ingest != nil {
			fmt.Fprintln(w)
		}
		return f.formatProduction(report, w)
	}
	return nil
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	if r := report.Ingest; r != nil {
		fmt.Fprintf(w, "cutlog: %d committed, %d recovered, %d skipped, %d empty, %d failed, %d records\n",
			r.Count(ingest.OutcomeCommitted),
			r.Count(ingest.OutcomeRecovered),
			r.Count(ingest.OutcomeSkippedArchived),
			r.Count(ingest.OutcomeEmpty),
			len(r.Failures()),
			r.RecordsCommitted())
	}
	if p := report.Production; p != nil && p.Summary != nil {
		s := p.Summary
		fmt.Fprintf(w, "cutlog: %d records, %d plates, %d jobs over %d days, productivity %.2f%%\n",
			s.Records, s.TotalPlates, s.DistinctJobs, s.ActiveDays, s.ProductivityPercent)
	}
	return nil
}

func (f *TextFormatter) formatIngest(r *ingest.Report, w io.Writer) error {
	fmt.Fprintln(w, "=== cutlog Ingestion Report ===")
	if r.DryRun {
		fmt.Fprintln(w, "(dry run: nothing committed or archived)")
	}
	fmt.Fprintln(w)

	if len(r.Files) == 0 {
		fmt.Fprintln(w, "No candidate files")
		fmt.Fprintln(w)
	}

	for _, res := range r.Files {
		f.formatFile(res, w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d files, %d committed, %d recovered, %d failed, %d records, %d lines rejected\n",
		len(r.Files),
		r.Count(ingest.OutcomeCommitted),
		r.Count(ingest.OutcomeRecovered),
		len(r.Failures()),
		r.RecordsCommitted(),
		r.LinesSkipped())
	if r.Aborted {
		fmt.Fprintf(w, "Run aborted: %s\n", r.Error)
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
		fmt.Fprintf(w, "Duration: %s\n", r.Duration().Round(time.Millisecond))
	}
	return nil
}

func (f *TextFormatter) formatFile(res *ingest.FileResult, w io.Writer) {
	outcome := strings.ToUpper(string(res.Outcome))
	switch res.Outcome {
	case ingest.OutcomeSkippedArchived, ingest.OutcomeClaimedElsewhere:
		fmt.Fprintf(w, "[%s] %s\n", outcome, res.File)
	default:
		fmt.Fprintf(w, "[%s] %s: %d records, %d rejected\n", outcome, res.File, res.Records, res.Skipped)
	}

	if res.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", res.Error)
	}
	if res.ArchivedAs != "" && f.opts.Verbose {
		fmt.Fprintf(w, "  Archived as: %s\n", res.ArchivedAs)
	}
	if f.opts.Verbose {
		for _, issue := range res.Issues {
			fmt.Fprintf(w, "  - line %d: %s\n", issue.Line, issue.Reason)
		}
	}
}

func (f *TextFormatter) formatProduction(report *Report, w io.Writer) error {
	p := report.Production
	fmt.Fprintln(w, "=== cutlog Production Report ===")
	if report.Metadata.Range != "" && report.Metadata.Range != ".." {
		fmt.Fprintf(w, "Range: %s\n", report.Metadata.Range)
	}
	fmt.Fprintln(w)

	if p.Daily != nil {
		formatDaily(p.Daily, w)
	}
	if p.Jobs != nil {
		formatJobs(p.Jobs, w)
	}
	if p.Thickness != nil {
		formatThickness(p.Thickness, w)
	}
	if p.Idle != nil {
		f.formatIdle(p.Idle, w)
	}
	if p.Summary != nil {
		formatSummary(p.Summary, w)
	}
	return nil
}

func formatDaily(days []aggregate.DailyMetrics, w io.Writer) {
	fmt.Fprintln(w, "[DAILY]")
	if len(days) == 0 {
		fmt.Fprintln(w, "  No records")
		fmt.Fprintln(w)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  DATE\tRECORDS\tJOBS\tPLATES\tAVG TIME\tTOTAL TIME\tAVG THICK\tPLATES/H")
	for _, d := range days {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%s\t%s\t%.1f\t%.1f\n",
			d.Date, d.Records, d.DistinctJobs, d.TotalPlates,
			formatSeconds(d.AvgDurationSeconds), formatSeconds(float64(d.TotalDurationSeconds)),
			d.AvgThicknessMM, d.PlatesPerHour)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func formatJobs(jobs []aggregate.JobMetrics, w io.Writer) {
	fmt.Fprintln(w, "[JOBS]")
	if len(jobs) == 0 {
		fmt.Fprintln(w, "  No records")
		fmt.Fprintln(w)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  JOB\tBOARD (mm)\tRECORDS\tPLATES\tAVG TIME\tTOTAL TIME\tFIRST\tLAST")
	for _, j := range jobs {
		fmt.Fprintf(tw, "  %s\t%gx%gx%g\t%d\t%d\t%s\t%s\t%s\t%s\n",
			j.JobKey, j.LengthMM, j.WidthMM, j.ThicknessMM,
			j.Records, j.TotalPlates,
			formatSeconds(j.AvgDurationSeconds), formatSeconds(float64(j.TotalDurationSeconds)),
			j.FirstDate, j.LastDate)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func formatThickness(rows []aggregate.ThicknessMetrics, w io.Writer) {
	fmt.Fprintln(w, "[THICKNESS]")
	if len(rows) == 0 {
		fmt.Fprintln(w, "  No records")
		fmt.Fprintln(w)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  THICKNESS (mm)\tRECORDS\tPLATES\tJOBS\tAVG TIME\tAVG AREA (m2)")
	for _, t := range rows {
		fmt.Fprintf(tw, "  %g\t%d\t%d\t%d\t%s\t%.2f\n",
			t.ThicknessMM, t.Records, t.TotalPlates, t.DistinctJobs,
			formatSeconds(t.AvgDurationSeconds), t.AvgAreaMM2/1e6)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatIdle(days []aggregate.IdleMetrics, w io.Writer) {
	fmt.Fprintln(w, "[IDLE]")
	if len(days) == 0 {
		fmt.Fprintln(w, "  No records")
		fmt.Fprintln(w)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  DATE\tFIRST START\tLAST END\tSPAN\tPRODUCTIVE\tIDLE\tIDLE %")
	for _, d := range days {
		mark := ""
		if d.Anomalous {
			mark = " *"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%.2f%s\n",
			d.Date, d.FirstStart, d.LastEnd,
			formatSeconds(float64(d.SpanSeconds)), formatSeconds(float64(d.ProductiveSeconds)),
			formatSeconds(float64(d.IdleSeconds)), d.IdlePercent, mark)
	}
	tw.Flush()
	for _, d := range days {
		if d.Anomalous {
			fmt.Fprintln(w, "  * recorded work exceeds the machine span (overlapping records); idle clamped to 0")
			break
		}
	}
	fmt.Fprintln(w)
}

func formatSummary(s *aggregate.Summary, w io.Writer) {
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d records, %d plates, %d distinct jobs, %d active days\n",
		s.Records, s.TotalPlates, s.DistinctJobs, s.ActiveDays)
	fmt.Fprintf(w, "Average cut time: %s, average plates/day: %.1f\n",
		formatSeconds(s.AvgDurationSeconds), s.AvgPlatesPerDay)
	fmt.Fprintf(w, "Plates at %gmm: %d\n", s.HighlightThicknessMM, s.HighlightPlates)
	fmt.Fprintf(w, "Productivity: %.2f%% (%s of %s machine time)\n",
		s.ProductivityPercent, formatSeconds(float64(s.ProductiveSeconds)), formatSeconds(float64(s.SpanSeconds)))
	if s.AnomalousDays > 0 {
		fmt.Fprintf(w, "Warning: %d day(s) with overlapping records\n", s.AnomalousDays)
	}
}

// formatSeconds renders a duration as H:MM:SS.
func formatSeconds(secs float64) string {
	total := int64(secs + 0.5)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}
