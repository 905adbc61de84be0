// Package output provides formatting for ingestion and production reports.
package output

import (
	"time"

	"github.com/lcdc/cutlog/pkg/aggregate"
	"github.com/lcdc/cutlog/pkg/ingest"
)

// Report is what a command prints. Either section may be nil.
type Report struct {
	Ingest     *ingest.Report    `json:"ingest,omitempty"`
	Production *aggregate.Report `json:"production,omitempty"`
	Metadata   Metadata          `json:"metadata"`
}

// Metadata provides context about the command run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// Range is the date filter applied to production views, if any.
	Range string `json:"range,omitempty"`

	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// NewIngestReport wraps an ingestion run report.
func NewIngestReport(r *ingest.Report, configFile string) *Report {
	return &Report{
		Ingest: r,
		Metadata: Metadata{
			ConfigFile:  configFile,
			GeneratedAt: r.FinishedAt,
			Duration:    r.Duration(),
		},
	}
}

// NewProductionReport wraps aggregate views computed over rangeLabel.
func NewProductionReport(r *aggregate.Report, rangeLabel, configFile string, started time.Time) *Report {
	now := time.Now().UTC()
	return &Report{
		Production: r,
		Metadata: Metadata{
			ConfigFile:  configFile,
			Range:       rangeLabel,
			GeneratedAt: now,
			Duration:    now.Sub(started),
		},
	}
}

// HasIssues returns true if the ingestion run had failures.
func (r *Report) HasIssues() bool {
	return r.Ingest != nil && r.Ingest.HasFailures()
}
