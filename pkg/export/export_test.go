package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/cut"
	"github.com/lcdc/cutlog/pkg/logger"
	"github.com/lcdc/cutlog/pkg/store"
)

type sliceSource struct {
	recs []*cut.Record
	err  error
	i    int
}

func (s *sliceSource) Next(context.Context) (*cut.Record, error) {
	if s.i >= len(s.recs) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	r := s.recs[s.i]
	s.i++
	return r, nil
}

func (s *sliceSource) Close() error { return nil }

func record(name string, plates int) *cut.Record {
	return &cut.Record{
		OptimizationName: "logs/" + name + ".opt",
		JobKey:           name,
		ProcessDate:      cut.NewDate(2024, 3, 10),
		StartTime:        cut.Clock(8, 0, 0),
		EndTime:          cut.Clock(8, 30, 0),
		LengthMM:         1200,
		WidthMM:          600.5,
		ThicknessMM:      18,
		PlateCount:       plates,
		SourceFile:       "batch.txt",
		SourceChecksum:   "c0ffee",
		SourceLine:       plates,
		LoadTimestamp:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

var fixedNow = func() time.Time { return time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC) }

func TestValues(t *testing.T) {
	got := Values(record("O'Brien", 250))
	want := "('logs/O''Brien.opt', 'O''Brien', '2024-03-10', '08:00:00', '08:30:00', 1200, 600.5, 18, 250, " +
		"1800, 720600, 12970800, 'batch.txt', 'c0ffee', 250, '2024-03-10 09:00:00')"
	if got != want {
		t.Errorf("Values() =\n%s\nwant\n%s", got, want)
	}
}

func TestSQL_Batches(t *testing.T) {
	var recs []*cut.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, record("A", i+1))
	}

	var buf bytes.Buffer
	n, err := SQL(context.Background(), &sliceSource{recs: recs}, &buf, Options{BatchSize: 2, Total: 5, Now: fixedNow})
	if err != nil {
		t.Fatalf("SQL() error = %v", err)
	}
	if n != 5 {
		t.Errorf("rows = %d, want 5", n)
	}

	out := buf.String()
	if got := strings.Count(out, "INSERT INTO cut_records ("); got != 3 {
		t.Errorf("INSERT statements = %d, want 3", got)
	}
	if !strings.Contains(out, "-- Total records: 5") || !strings.Contains(out, "-- Generated 2024-03-11T00:00:00Z") {
		t.Errorf("header missing\n%s", out)
	}
	if !strings.Contains(out, "-- Batch 3\n") {
		t.Error("batch comments missing")
	}
	if strings.Count(out, ";\n") != 3+1 { // plus the commented TRUNCATE
		t.Errorf("statement terminators = %d", strings.Count(out, ";\n"))
	}
	for _, col := range Columns {
		if !strings.Contains(out, col) {
			t.Errorf("column %s missing", col)
		}
	}
}

func TestSQL_LoadsIntoMigratedStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "cutlog.db")}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	recs := []*cut.Record{record("A", 1), record("B", 2), record("O'Brien", 3)}
	var buf bytes.Buffer
	if _, err := SQL(ctx, &sliceSource{recs: recs}, &buf, Options{BatchSize: 2, Total: 3, Now: fixedNow}); err != nil {
		t.Fatal(err)
	}
	if err := st.DB().WithContext(ctx).Exec(buf.String()).Error; err != nil {
		t.Fatalf("loading export: %v\n%s", err, buf.String())
	}

	n, err := st.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("CountRecords() = %d, want 3", n)
	}

	src, err := st.Records(ctx, cut.DateRange{})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	plates := 0
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		plates += rec.PlateCount
		if rec.DurationSeconds != 1800 || rec.SourceChecksum != "c0ffee" {
			t.Errorf("loaded record = %+v", rec)
		}
	}
	if plates != 6 {
		t.Errorf("plates = %d, want 6", plates)
	}
}

func TestSQL_DefaultBatchSize(t *testing.T) {
	var recs []*cut.Record
	for i := 0; i < DefaultBatchSize+1; i++ {
		recs = append(recs, record("A", 1))
	}
	var buf bytes.Buffer
	if _, err := SQL(context.Background(), &sliceSource{recs: recs}, &buf, Options{Total: -1}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(buf.String(), "INSERT INTO"); got != 2 {
		t.Errorf("INSERT statements = %d, want 2", got)
	}
	if strings.Contains(buf.String(), "Total records") {
		t.Error("negative total should be omitted")
	}
}

func TestSQL_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := SQL(context.Background(), &sliceSource{}, &buf, Options{Table: "cortes", Total: 0})
	if err != nil || n != 0 {
		t.Fatalf("SQL() = %d, %v", n, err)
	}
	if strings.Contains(buf.String(), "INSERT") {
		t.Error("empty export should have no INSERT")
	}
	if !strings.Contains(buf.String(), "TRUNCATE TABLE cortes") {
		t.Error("table name not applied")
	}
}

func TestSQL_SourceError(t *testing.T) {
	src := &sliceSource{recs: []*cut.Record{record("A", 1)}, err: errors.New("connection reset")}
	_, err := SQL(context.Background(), src, io.Discard, Options{})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("SQL() error = %v", err)
	}
}
