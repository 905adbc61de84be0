package webhook

import (
	"time"

	"github.com/lcdc/cutlog/pkg/ingest"
	"github.com/lcdc/cutlog/pkg/output"
)

// Event names carried in the payload and the X-Cutlog-Event header.
const (
	EventRunCompleted = "ingest.completed"
	EventRunFailed    = "ingest.failed"
)

// Payload is the body posted for one ingestion run. It carries outcome
// counts and the failed files only, never the parsed records.
type Payload struct {
	Event         string         `json:"event"`
	RunID         string         `json:"run_id"`
	ConfigFile    string         `json:"config_file,omitempty"`
	InputDir      string         `json:"input_dir"`
	DryRun        bool           `json:"dry_run,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	DurationMS    int64          `json:"duration_ms"`
	Outcomes      map[string]int `json:"outcomes"`
	Records       int            `json:"records_committed"`
	LinesRejected int            `json:"lines_rejected"`
	Aborted       bool           `json:"aborted,omitempty"`
	Error         string         `json:"error,omitempty"`
	Failures      []FailedFile   `json:"failures,omitempty"`
}

// FailedFile is one file the run could not finish.
type FailedFile struct {
	File    string `json:"file"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// NewPayload summarizes the ingestion section of a report.
func NewPayload(report *output.Report) *Payload {
	p := &Payload{
		Event:      EventRunCompleted,
		ConfigFile: report.Metadata.ConfigFile,
		Outcomes:   map[string]int{},
	}
	r := report.Ingest
	if r == nil {
		return p
	}

	p.RunID = r.RunID
	p.InputDir = r.InputDir
	p.DryRun = r.DryRun
	p.StartedAt = r.StartedAt
	p.FinishedAt = r.FinishedAt
	p.DurationMS = r.Duration().Milliseconds()
	p.Records = r.RecordsCommitted()
	p.LinesRejected = r.LinesSkipped()
	p.Aborted = r.Aborted
	p.Error = r.Error

	for _, o := range ingest.Outcomes {
		if n := r.Count(o); n > 0 {
			p.Outcomes[string(o)] = n
		}
	}
	for _, f := range r.Failures() {
		p.Failures = append(p.Failures, FailedFile{File: f.File, Outcome: string(f.Outcome), Error: f.Error})
	}
	if r.Aborted || len(p.Failures) > 0 {
		p.Event = EventRunFailed
	}
	return p
}
