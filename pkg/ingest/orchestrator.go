// Package ingest turns a directory of machine log files into committed
// records, exactly once per file.
//
// A run lists the candidate files, skips those whose name is already in the
// archive, parses each remaining file, commits its records in one
// transaction and then moves it into the archive. The content checksum
// recorded with each commit covers the gap between commit and move: a file
// whose move failed is recognised on the next run and only archived.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lcdc/cutlog/pkg/logger"
	"github.com/lcdc/cutlog/pkg/parser"
	"github.com/lcdc/cutlog/pkg/store"
)

// Committer is the storage the orchestrator writes to.
type Committer interface {
	IsIngested(ctx context.Context, checksum string) (bool, error)
	CommitFile(ctx context.Context, batch *store.FileBatch) error
}

// LayoutResolver picks the line layout for a file.
type LayoutResolver func(ctx context.Context, path string) (*parser.Layout, error)

// FixedLayout always resolves to l.
func FixedLayout(l *parser.Layout) LayoutResolver {
	return func(context.Context, string) (*parser.Layout, error) { return l, nil }
}

// Orchestrator runs ingestion over one input directory.
type Orchestrator struct {
	inputDir string
	pattern  string
	archive  *Archive
	store    Committer
	resolve  LayoutResolver
	log      *logger.Logger
	now      func() time.Time
	dryRun   bool
}

// Option configures orchestrator behavior.
type Option func(*Orchestrator)

// WithDryRun parses and reports without committing or archiving.
func WithDryRun(v bool) Option {
	return func(o *Orchestrator) { o.dryRun = v }
}

// WithPattern restricts candidates to file names matching a glob.
func WithPattern(pattern string) Option {
	return func(o *Orchestrator) { o.pattern = pattern }
}

// WithLayoutResolver sets how each file's layout is chosen.
func WithLayoutResolver(fn LayoutResolver) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.resolve = fn
		}
	}
}

// WithClock overrides the time source used for run times and archive names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.archive.now = now
	}
}

// New creates an orchestrator. Files default to the standard layout.
func New(inputDir, archiveDir string, st Committer, log *logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		inputDir: inputDir,
		archive:  NewArchive(archiveDir),
		store:    st,
		resolve:  FixedLayout(&parser.Standard),
		log:      log.With("service", "Orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every new file in the input directory once.
//
// Per-line parse failures are recorded and the file is still committed.
// File-level read and archive failures are recorded and the run moves on.
// A storage failure stops the run: the returned report covers the files
// handled so far and the error is a *StorageCommitError.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	runID := uuid.New()
	report := &Report{
		RunID:      runID.String(),
		InputDir:   o.inputDir,
		ArchiveDir: o.archive.Dir(),
		DryRun:     o.dryRun,
		StartedAt:  o.now().UTC(),
		Files:      []*FileResult{},
	}
	log := o.log.With("run_id", report.RunID)

	finish := func(err error) (*Report, error) {
		report.FinishedAt = o.now().UTC()
		if err != nil {
			report.Aborted = true
			report.Error = err.Error()
		}
		log.Info("ingestion run finished",
			"committed", report.Count(OutcomeCommitted),
			"recovered", report.Count(OutcomeRecovered),
			"failed", len(report.Failures()),
			"records", report.RecordsCommitted(),
			"elapsed", report.Duration())
		return report, err
	}

	files, err := parser.ListCandidates(o.inputDir, o.pattern)
	if err != nil {
		return finish(err)
	}
	if !o.dryRun {
		if err := o.archive.Ensure(); err != nil {
			return finish(err)
		}
	}
	archived, err := o.archive.Index()
	if err != nil {
		return finish(err)
	}

	log.Info("ingestion run started", "candidates", len(files), "dry_run", o.dryRun)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		name := filepath.Base(path)
		if archived[name] {
			log.Debug("skipping already archived file", "file", name)
			report.Files = append(report.Files, &FileResult{File: name, Outcome: OutcomeSkippedArchived})
			continue
		}

		res, err := o.processFile(ctx, log.With("file", name), runID, path)
		report.Files = append(report.Files, res)
		if err != nil {
			return finish(err)
		}
	}

	return finish(nil)
}

func (o *Orchestrator) processFile(ctx context.Context, log *logger.Logger, runID uuid.UUID, path string) (*FileResult, error) {
	res := &FileResult{File: filepath.Base(path)}

	layout, err := o.resolve(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		res.Outcome = OutcomeClaimedElsewhere
		log.Info("file vanished before reading, another run took it")
		return res, nil
	}
	if err != nil {
		res.fail(OutcomeReadFailed, &ReadError{File: res.File, Err: err})
		log.Error("resolving layout failed", "error", err)
		return res, nil
	}
	res.Layout = layout.Name

	parsed, err := parser.ReadFile(ctx, path, layout)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.Outcome = OutcomeClaimedElsewhere
			log.Info("file vanished before reading, another run took it")
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.fail(OutcomeReadFailed, &ReadError{File: res.File, Err: err})
		log.Error("reading file failed", "error", err)
		return res, nil
	}

	res.Checksum = parsed.Checksum
	res.Lines = parsed.Lines
	res.Records = len(parsed.Records)
	res.Skipped = len(parsed.Errors)
	issues := make([]store.IngestionIssue, 0, len(parsed.Errors))
	for _, perr := range parsed.Errors {
		res.Issues = append(res.Issues, LineIssue{Line: perr.LineNum, Reason: perr.Reason})
		issues = append(issues, store.IngestionIssue{LineNumber: perr.LineNum, Reason: perr.Reason, RawLine: perr.Line})
		log.Debug("line rejected", "line", perr.LineNum, "reason", perr.Reason)
	}

	if len(parsed.Records) == 0 {
		res.fail(OutcomeEmpty, &EmptyFileError{File: res.File, Lines: parsed.Lines, Skipped: len(parsed.Errors)})
		log.Warn("no valid lines, leaving file in place", "lines", parsed.Lines, "rejected", len(parsed.Errors))
		return res, nil
	}

	if o.dryRun {
		res.Outcome = OutcomeDryRun
		return res, nil
	}

	done, err := o.store.IsIngested(ctx, parsed.Checksum)
	if err != nil {
		cerr := &StorageCommitError{File: res.File, Err: err}
		res.fail(OutcomeCommitFailed, cerr)
		log.Error("checking checksum failed", "error", err)
		return res, cerr
	}

	if done {
		res.Outcome = OutcomeRecovered
		log.Warn("content already committed by an earlier run, archiving only", "checksum", parsed.Checksum)
	} else {
		err = o.store.CommitFile(ctx, &store.FileBatch{
			RunID:    runID,
			FileName: res.File,
			Checksum: parsed.Checksum,
			LoadedAt: o.now().UTC(),
			Records:  parsed.Records,
			Issues:   issues,
		})
		switch {
		case errors.Is(err, store.ErrAlreadyIngested):
			res.Outcome = OutcomeRecovered
			log.Warn("content committed concurrently by another run, batch discarded")
		case err != nil:
			cerr := &StorageCommitError{File: res.File, Err: err}
			res.fail(OutcomeCommitFailed, cerr)
			log.Error("commit failed, file left for retry", "error", err)
			return res, cerr
		default:
			res.Outcome = OutcomeCommitted
			log.Info("file committed", "records", res.Records, "rejected", res.Skipped)
		}
	}

	dest, err := o.archive.Move(path)
	switch {
	case errors.Is(err, ErrSourceGone):
		if res.Outcome != OutcomeCommitted {
			res.Outcome = OutcomeClaimedElsewhere
		}
		log.Info("file archived by another run")
	case err != nil:
		res.fail(OutcomeArchiveFailed, &ArchiveError{File: res.File, Dest: dest, Err: err})
		log.Error("archiving failed after commit, will be recovered by checksum on the next run", "dest", dest, "error", err)
	default:
		res.ArchivedAs = filepath.Base(dest)
	}
	return res, nil
}
