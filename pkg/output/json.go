package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/lcdc/cutlog/pkg/aggregate"
	"github.com/lcdc/cutlog/pkg/ingest"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// QuietSummary is the JSON shape of quiet output.
type QuietSummary struct {
	Ingest     *IngestCounts      `json:"ingest,omitempty"`
	Production *aggregate.Summary `json:"production,omitempty"`
}

// IngestCounts is the per-outcome count of an ingestion run.
type IngestCounts struct {
	RunID    string         `json:"run_id"`
	Outcomes map[string]int `json:"outcomes"`
	Records  int            `json:"records"`
	Skipped  int            `json:"lines_skipped"`
	Aborted  bool           `json:"aborted,omitempty"`
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		return encoder.Encode(quietSummary(report))
	}

	return encoder.Encode(report)
}

func quietSummary(report *Report) QuietSummary {
	var q QuietSummary
	if r := report.Ingest; r != nil {
		counts := &IngestCounts{
			RunID:    r.RunID,
			Outcomes: map[string]int{},
			Records:  r.RecordsCommitted(),
			Skipped:  r.LinesSkipped(),
			Aborted:  r.Aborted,
		}
		for _, o := range ingest.Outcomes {
			if n := r.Count(o); n > 0 {
				counts.Outcomes[string(o)] = n
			}
		}
		q.Ingest = counts
	}
	if report.Production != nil {
		q.Production = report.Production.Summary
	}
	return q
}
