package ingest

import (
	"fmt"
	"time"
)

// Outcome is what happened to one candidate file during a run.
type Outcome string

const (
	OutcomeCommitted        Outcome = "committed"
	OutcomeRecovered        Outcome = "recovered"
	OutcomeSkippedArchived  Outcome = "skipped_archived"
	OutcomeClaimedElsewhere Outcome = "claimed_elsewhere"
	OutcomeEmpty            Outcome = "empty"
	OutcomeCommitFailed     Outcome = "commit_failed"
	OutcomeArchiveFailed    Outcome = "archive_failed"
	OutcomeReadFailed       Outcome = "read_failed"
	OutcomeDryRun           Outcome = "dry_run"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeCommitted,
	OutcomeRecovered,
	OutcomeSkippedArchived,
	OutcomeClaimedElsewhere,
	OutcomeEmpty,
	OutcomeCommitFailed,
	OutcomeArchiveFailed,
	OutcomeReadFailed,
	OutcomeDryRun,
}

// IsFailure reports whether the outcome needs operator attention.
// Empty files are warnings, not failures.
func (o Outcome) IsFailure() bool {
	switch o {
	case OutcomeCommitFailed, OutcomeArchiveFailed, OutcomeReadFailed:
		return true
	default:
		return false
	}
}

// LineIssue is a rejected line.
type LineIssue struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// FileResult describes one candidate file.
type FileResult struct {
	File       string      `json:"file"`
	Outcome    Outcome     `json:"outcome"`
	Layout     string      `json:"layout,omitempty"`
	Checksum   string      `json:"checksum,omitempty"`
	Lines      int         `json:"lines"`
	Records    int         `json:"records"`
	Skipped    int         `json:"skipped"`
	ArchivedAs string      `json:"archived_as,omitempty"`
	Issues     []LineIssue `json:"issues,omitempty"`
	Error      string      `json:"error,omitempty"`

	err error
}

// Err returns the typed error behind a failed or empty outcome.
func (r *FileResult) Err() error { return r.err }

func (r *FileResult) fail(outcome Outcome, err error) {
	r.Outcome = outcome
	r.err = err
	r.Error = err.Error()
}

// Report is the result of one ingestion run.
type Report struct {
	RunID      string        `json:"run_id"`
	InputDir   string        `json:"input_dir"`
	ArchiveDir string        `json:"archive_dir"`
	DryRun     bool          `json:"dry_run,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Files      []*FileResult `json:"files"`

	// Aborted is set when a storage failure stopped the run early.
	Aborted bool   `json:"aborted,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of files with the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// RecordsCommitted returns the number of records written by this run.
func (r *Report) RecordsCommitted() int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == OutcomeCommitted {
			n += f.Records
		}
	}
	return n
}

// LinesSkipped returns the number of rejected lines across all files read.
func (r *Report) LinesSkipped() int {
	n := 0
	for _, f := range r.Files {
		n += f.Skipped
	}
	return n
}

// Failures returns the files whose outcome is a failure.
func (r *Report) Failures() []*FileResult {
	var out []*FileResult
	for _, f := range r.Files {
		if f.Outcome.IsFailure() {
			out = append(out, f)
		}
	}
	return out
}

// HasFailures reports whether any file failed or the run was aborted.
func (r *Report) HasFailures() bool {
	return r.Aborted || len(r.Failures()) > 0
}

// Warnings returns the files that were read but yielded no records.
func (r *Report) Warnings() []*FileResult {
	var out []*FileResult
	for _, f := range r.Files {
		if f.Outcome == OutcomeEmpty {
			out = append(out, f)
		}
	}
	return out
}

// Changed reports whether the run committed anything.
func (r *Report) Changed() bool {
	return r.Count(OutcomeCommitted) > 0
}

// String renders a one-line summary of the report.
func (r *Report) String() string {
	return fmt.Sprintf("run %s: %d committed, %d recovered, %d skipped, %d failed, %d records",
		r.RunID, r.Count(OutcomeCommitted), r.Count(OutcomeRecovered),
		r.Count(OutcomeSkippedArchived), len(r.Failures()), r.RecordsCommitted())
}
