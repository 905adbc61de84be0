package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/lcdc/cutlog/pkg/cut"
	"github.com/lcdc/cutlog/pkg/dbctx"
)

// IsIngested reports whether a file with this content checksum was committed.
func (s *Store) IsIngested(ctx context.Context, checksum string) (bool, error) {
	ok, err := s.files.ExistsChecksum(dbctx.Context{Ctx: ctx}, checksum)
	if err != nil {
		return false, fmt.Errorf("checking ingested files: %w", err)
	}
	return ok, nil
}

// CommitFile writes a file's IngestedFile marker, its records and its parse
// issues in one transaction. The marker goes first so a concurrent commit of
// the same content fails fast with ErrAlreadyIngested.
func (s *Store) CommitFile(ctx context.Context, batch *FileBatch) error {
	if batch == nil || batch.Checksum == "" {
		return errors.New("commit: batch has no checksum")
	}
	loadedAt := batch.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = time.Now().UTC()
	}

	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		file := &IngestedFile{
			Checksum:     batch.Checksum,
			FileName:     batch.FileName,
			RunID:        batch.RunID.String(),
			RecordCount:  len(batch.Records),
			SkippedLines: len(batch.Issues),
			IngestedAt:   loadedAt,
		}
		if err := s.files.Create(dbc, file); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyIngested
			}
			return fmt.Errorf("recording ingested file: %w", err)
		}

		for _, rec := range batch.Records {
			rec.ID = 0
			rec.SourceFile = batch.FileName
			rec.SourceChecksum = batch.Checksum
			rec.LoadTimestamp = loadedAt
		}
		if err := s.records.Create(dbc, batch.Records); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyIngested
			}
			return fmt.Errorf("inserting cut records: %w", err)
		}

		for i := range batch.Issues {
			batch.Issues[i].Checksum = batch.Checksum
			batch.Issues[i].FileName = batch.FileName
		}
		if err := s.files.CreateIssues(dbc, batch.Issues); err != nil {
			return fmt.Errorf("inserting ingestion issues: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug("file committed", "file", batch.FileName, "records", len(batch.Records), "issues", len(batch.Issues))
	return nil
}

// Records streams the committed records within the date range, ordered by id.
func (s *Store) Records(ctx context.Context, r cut.DateRange) (cut.Source, error) {
	return s.records.Stream(dbctx.Context{Ctx: ctx}, r)
}

// CountRecords returns the number of committed records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	return s.records.Count(dbctx.Context{Ctx: ctx})
}

// IngestedFiles lists the committed files in commit order.
func (s *Store) IngestedFiles(ctx context.Context) ([]IngestedFile, error) {
	return s.files.List(dbctx.Context{Ctx: ctx})
}

// CopyResult summarizes a Copy.
type CopyResult struct {
	Read           int64
	RecordsCopied  int64
	FilesCopied    int64
	AlreadyPresent int64
}

// Copy appends every record and ingested-file marker of s into dst in one
// destination transaction. Markers are written after the records, so an
// interrupted copy leaves dst unchanged. Rows dst already holds (same
// checksum and line) are left untouched, so running Copy twice is harmless.
func (s *Store) Copy(ctx context.Context, dst *Store, batchSize int) (*CopyResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	res := &CopyResult{}

	// Listed before the records are read: a file committed to s while the
	// copy runs may get its records copied, never a marker without them.
	files, err := s.IngestedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing source files: %w", err)
	}

	err = dst.tx.InTx(ctx, func(dbc dbctx.Context) error {
		src, err := s.Records(ctx, cut.DateRange{})
		if err != nil {
			return err
		}
		defer src.Close()

		batch := make([]*cut.Record, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := dst.records.CreateIgnoringDuplicates(dbc, batch)
			if err != nil {
				return fmt.Errorf("copying cut records: %w", err)
			}
			res.RecordsCopied += n
			res.AlreadyPresent += int64(len(batch)) - n
			batch = batch[:0]
			return nil
		}

		for {
			rec, err := src.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			rec.ID = 0
			batch = append(batch, rec)
			res.Read++
			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		n, err := dst.files.CopyMissing(dbc, files)
		if err != nil {
			return fmt.Errorf("copying ingested files: %w", err)
		}
		res.FilesCopied = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("copy complete", "read", res.Read, "copied", res.RecordsCopied, "files", res.FilesCopied)
	return res, nil
}
