// Package export writes committed cut records as a portable SQL script of
// multi-row INSERT statements, for loading into another database by hand.
package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lcdc/cutlog/pkg/cut"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 100

// Columns are the exported columns in statement order. They cover every
// non-null column of cut_records, so the script loads into a migrated store.
var Columns = []string{
	"optimization_name", "job_key", "process_date", "start_time", "end_time",
	"length_mm", "width_mm", "thickness_mm", "plate_count",
	"duration_seconds", "area_mm2", "volume_mm3",
	"source_file", "source_checksum", "source_line", "load_timestamp",
}

// Options tunes the script.
type Options struct {
	Table     string
	BatchSize int
	// Total is printed in the header when non-negative.
	Total int64
	Now   func() time.Time
}

func (o *Options) defaults() {
	if o.Table == "" {
		o.Table = "cut_records"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// SQL streams every record from src into w and returns the number of rows
// written. Records are written in the order src yields them.
func SQL(ctx context.Context, src cut.Source, w io.Writer, opts Options) (int, error) {
	opts.defaults()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "-- cutlog export of %s\n", opts.Table)
	fmt.Fprintf(bw, "-- Generated %s\n", opts.Now().UTC().Format(time.RFC3339))
	if opts.Total >= 0 {
		fmt.Fprintf(bw, "-- Total records: %d\n", opts.Total)
	}
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "-- TRUNCATE TABLE %s RESTART IDENTITY;\n\n", opts.Table)

	var batch []string
	rows, batches := 0, 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		batches++
		fmt.Fprintf(bw, "-- Batch %d\n", batches)
		fmt.Fprintf(bw, "INSERT INTO %s (%s) VALUES\n", opts.Table, strings.Join(Columns, ", "))
		bw.WriteString(strings.Join(batch, ",\n"))
		bw.WriteString(";\n\n")
		batch = batch[:0]
	}

	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("reading records: %w", err)
		}
		batch = append(batch, Values(rec))
		rows++
		if len(batch) == opts.BatchSize {
			flush()
		}
	}
	flush()

	if err := bw.Flush(); err != nil {
		return rows, fmt.Errorf("writing export: %w", err)
	}
	return rows, nil
}

// Values renders one record as a parenthesized SQL value tuple. Derived
// columns are recomputed from the base fields.
func Values(rec *cut.Record) string {
	d := *rec
	d.Derive()
	rec = &d
	vals := []string{
		quote(rec.OptimizationName),
		quote(rec.JobKey),
		quote(rec.DayKey()),
		quote(cut.FormatClock(rec.StartTime)),
		quote(cut.FormatClock(rec.EndTime)),
		number(rec.LengthMM),
		number(rec.WidthMM),
		number(rec.ThicknessMM),
		strconv.Itoa(rec.PlateCount),
		strconv.FormatInt(rec.DurationSeconds, 10),
		number(rec.AreaMM2),
		number(rec.VolumeMM3),
		quote(rec.SourceFile),
		quote(rec.SourceChecksum),
		strconv.Itoa(rec.SourceLine),
		quote(rec.LoadTimestamp.UTC().Format("2006-01-02 15:04:05.999999")),
	}
	return "(" + strings.Join(vals, ", ") + ")"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
