package ingest

import (
	"errors"
	"fmt"
)

// ErrSourceGone is returned by Archive.Move when the file vanished before it
// could be moved, which means another run archived it first.
var ErrSourceGone = errors.New("source file no longer present")

// EmptyFileError means no line of the file parsed. The file is left in place.
type EmptyFileError struct {
	File    string
	Lines   int
	Skipped int
}

func (e *EmptyFileError) Error() string {
	return fmt.Sprintf("%s: no valid lines (%d lines, %d rejected)", e.File, e.Lines, e.Skipped)
}

// StorageCommitError means the file's transaction failed. Nothing was
// committed and the file stays in the input directory for the next run.
type StorageCommitError struct {
	File string
	Err  error
}

func (e *StorageCommitError) Error() string {
	return fmt.Sprintf("committing %s: %v", e.File, e.Err)
}

func (e *StorageCommitError) Unwrap() error { return e.Err }

// ArchiveError means the file was committed but could not be moved. The next
// run finds its checksum already ingested and only retries the move.
type ArchiveError struct {
	File string
	Dest string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archiving %s to %s: %v", e.File, e.Dest, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// ReadError means the file could not be read. It is retried on the next run.
type ReadError struct {
	File string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.File, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
