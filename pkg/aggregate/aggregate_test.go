package aggregate

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/lcdc/cutlog/pkg/cut"
)

// sliceSource is an in-memory record source.
type sliceSource struct {
	recs []*cut.Record
	pos  int
	err  error
}

func (s *sliceSource) Next(ctx context.Context) (*cut.Record, error) {
	if s.pos >= len(s.recs) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, nil
}

func (s *sliceSource) Close() error { return nil }

type sliceStore struct {
	recs []*cut.Record
	err  error
}

func (s *sliceStore) Records(ctx context.Context, r cut.DateRange) (cut.Source, error) {
	return &sliceSource{recs: s.recs, err: s.err}, nil
}

func rec(job string, day int, start, end string, thick float64, plates int) *cut.Record {
	r := &cut.Record{
		JobKey:      job,
		ProcessDate: cut.NewDate(2024, time.March, day),
		StartTime:   clock(start),
		EndTime:     clock(end),
		LengthMM:    1200,
		WidthMM:     600,
		ThicknessMM: thick,
		PlateCount:  plates,
	}
	r.Derive()
	return r
}

func clock(s string) datatypes.Time {
	t, err := time.Parse("15:04", s)
	if err != nil {
		panic(err)
	}
	return cut.Clock(t.Hour(), t.Minute(), 0)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestIdle_TwoRecords(t *testing.T) {
	engine := NewEngine(&sliceStore{recs: []*cut.Record{
		rec("A", 10, "08:00", "08:30", 18, 10),
		rec("B", 10, "09:00", "09:45", 18, 10),
	}})

	idle, err := engine.Idle(context.Background(), cut.DateRange{})
	if err != nil {
		t.Fatalf("Idle() error = %v", err)
	}
	if len(idle) != 1 {
		t.Fatalf("got %d days, want 1", len(idle))
	}
	d := idle[0]
	if d.SpanSeconds != 6300 || d.ProductiveSeconds != 4500 || d.IdleSeconds != 1800 {
		t.Errorf("span/productive/idle = %d/%d/%d, want 6300/4500/1800", d.SpanSeconds, d.ProductiveSeconds, d.IdleSeconds)
	}
	if !approx(d.IdlePercent, 28.57) {
		t.Errorf("IdlePercent = %v, want ~28.57", d.IdlePercent)
	}
	if d.FirstStart != "08:00:00" || d.LastEnd != "09:45:00" {
		t.Errorf("window = %s-%s", d.FirstStart, d.LastEnd)
	}
	if d.Anomalous {
		t.Error("Anomalous = true, want false")
	}
}

func TestIdle_EdgeCases(t *testing.T) {
	tests := []struct {
		name          string
		recs          []*cut.Record
		wantSpan      int64
		wantIdle      int64
		wantPercent   float64
		wantAnomalous bool
	}{
		{
			name:     "single record",
			recs:     []*cut.Record{rec("A", 10, "08:00", "08:30", 18, 1)},
			wantSpan: 1800,
		},
		{
			name: "overlapping records",
			recs: []*cut.Record{
				rec("A", 10, "08:00", "09:00", 18, 1),
				rec("B", 10, "08:30", "09:00", 18, 1),
			},
			wantSpan:      3600,
			wantAnomalous: true,
		},
		{
			name:     "zero span",
			recs:     []*cut.Record{rec("A", 10, "08:00", "08:00", 18, 1)},
			wantSpan: 0,
		},
		{
			name: "back to back",
			recs: []*cut.Record{
				rec("A", 10, "08:00", "09:00", 18, 1),
				rec("B", 10, "09:00", "10:00", 18, 1),
			},
			wantSpan: 7200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idle, err := NewEngine(&sliceStore{recs: tt.recs}).Idle(context.Background(), cut.DateRange{})
			if err != nil {
				t.Fatalf("Idle() error = %v", err)
			}
			d := idle[0]
			if d.SpanSeconds != tt.wantSpan || d.IdleSeconds != tt.wantIdle || d.IdlePercent != tt.wantPercent {
				t.Errorf("span/idle/percent = %d/%d/%v, want %d/%d/%v",
					d.SpanSeconds, d.IdleSeconds, d.IdlePercent, tt.wantSpan, tt.wantIdle, tt.wantPercent)
			}
			if d.Anomalous != tt.wantAnomalous {
				t.Errorf("Anomalous = %v, want %v", d.Anomalous, tt.wantAnomalous)
			}
			if d.IdlePercent < 0 || d.IdlePercent > 100 {
				t.Errorf("IdlePercent = %v out of [0, 100]", d.IdlePercent)
			}
		})
	}
}

func mixedRecords() []*cut.Record {
	return []*cut.Record{
		rec("A", 10, "08:00", "08:30", 18, 250),
		rec("B", 10, "09:00", "09:45", 15, 100),
		rec("A", 10, "10:00", "10:10", 18, 50),
		rec("C", 11, "07:00", "07:20", 18, 40),
		rec("B", 11, "07:30", "08:30", 15, 100),
		rec("D", 9, "12:00", "12:06", 3, 5),
	}
}

func TestDaily(t *testing.T) {
	daily, err := NewEngine(&sliceStore{recs: mixedRecords()}).Daily(context.Background(), cut.DateRange{})
	if err != nil {
		t.Fatalf("Daily() error = %v", err)
	}
	if len(daily) != 3 {
		t.Fatalf("got %d days, want 3", len(daily))
	}
	if daily[0].Date != "2024-03-09" || daily[1].Date != "2024-03-10" || daily[2].Date != "2024-03-11" {
		t.Errorf("dates = %s, %s, %s, want ascending", daily[0].Date, daily[1].Date, daily[2].Date)
	}

	d := daily[1]
	if d.Records != 3 || d.DistinctJobs != 2 || d.TotalPlates != 400 {
		t.Errorf("records/jobs/plates = %d/%d/%d, want 3/2/400", d.Records, d.DistinctJobs, d.TotalPlates)
	}
	if d.TotalDurationSeconds != 1800+2700+600 {
		t.Errorf("TotalDurationSeconds = %d", d.TotalDurationSeconds)
	}
	if !approx(d.AvgDurationSeconds, 1700) {
		t.Errorf("AvgDurationSeconds = %v, want 1700", d.AvgDurationSeconds)
	}
	if d.AvgAreaMM2 != 720000 || d.TotalAreaMM2 != 720000*400 {
		t.Errorf("area avg/total = %v/%v", d.AvgAreaMM2, d.TotalAreaMM2)
	}
	if d.MinThicknessMM != 15 || d.MaxThicknessMM != 18 || !approx(d.AvgThicknessMM, 17) {
		t.Errorf("thickness min/max/avg = %v/%v/%v", d.MinThicknessMM, d.MaxThicknessMM, d.AvgThicknessMM)
	}
	if !approx(d.PlatesPerHour, 400/(5100.0/3600)) {
		t.Errorf("PlatesPerHour = %v", d.PlatesPerHour)
	}
}

func TestJobs_Grouping(t *testing.T) {
	recs := mixedRecords()
	wider := rec("A", 11, "11:00", "11:30", 18, 7)
	wider.WidthMM = 700
	wider.Derive()
	recs = append(recs, wider)

	jobs, err := NewEngine(&sliceStore{recs: recs}).Jobs(context.Background(), cut.DateRange{}, JobOptions{})
	if err != nil {
		t.Fatalf("Jobs() error = %v", err)
	}
	if len(jobs) != 5 {
		t.Fatalf("got %d job groups, want 5", len(jobs))
	}

	want := []struct {
		key    string
		plates int
	}{
		{"A", 300}, {"B", 200}, {"C", 40}, {"A", 7}, {"D", 5},
	}
	for i, w := range want {
		if jobs[i].JobKey != w.key || jobs[i].TotalPlates != w.plates {
			t.Errorf("jobs[%d] = %s/%d, want %s/%d", i, jobs[i].JobKey, jobs[i].TotalPlates, w.key, w.plates)
		}
	}

	a := jobs[0]
	if a.Records != 2 || a.FirstDate != "2024-03-10" || a.LastDate != "2024-03-10" {
		t.Errorf("A = %+v", a)
	}
	if a.AreaMM2 != 720000 || a.VolumeMM3 != 720000*18 {
		t.Errorf("A dims = %v/%v", a.AreaMM2, a.VolumeMM3)
	}
	b := jobs[1]
	if b.FirstDate != "2024-03-10" || b.LastDate != "2024-03-11" || b.TotalDurationSeconds != 2700+3600 {
		t.Errorf("B = %+v", b)
	}
}

func TestJobs_SortAndTop(t *testing.T) {
	engine := NewEngine(&sliceStore{recs: mixedRecords()})
	ctx := context.Background()

	tests := []struct {
		sort JobSort
		top  int
		want []string
	}{
		{SortPlates, 0, []string{"A", "B", "C", "D"}},
		{SortRecords, 0, []string{"A", "B", "C", "D"}},
		{SortTotalTime, 2, []string{"B", "A"}},
		{SortAvgDuration, 0, []string{"B", "A", "C", "D"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			jobs, err := engine.Jobs(ctx, cut.DateRange{}, JobOptions{Sort: tt.sort, Top: tt.top})
			if err != nil {
				t.Fatalf("Jobs() error = %v", err)
			}
			if len(jobs) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(jobs), len(tt.want))
			}
			for i, key := range tt.want {
				if jobs[i].JobKey != key {
					t.Errorf("jobs[%d] = %s, want %s", i, jobs[i].JobKey, key)
				}
			}
		})
	}
}

func TestSortJobs_TieBreak(t *testing.T) {
	jobs := []JobMetrics{
		{JobKey: "B", TotalPlates: 10, LengthMM: 100},
		{JobKey: "A", TotalPlates: 10, LengthMM: 200, WidthMM: 50},
		{JobKey: "A", TotalPlates: 10, LengthMM: 100, WidthMM: 60},
		{JobKey: "A", TotalPlates: 10, LengthMM: 100, WidthMM: 50, ThicknessMM: 19},
		{JobKey: "A", TotalPlates: 10, LengthMM: 100, WidthMM: 50, ThicknessMM: 16},
	}
	SortJobs(jobs, SortPlates)

	want := []JobMetrics{
		{JobKey: "A", TotalPlates: 10, LengthMM: 100, WidthMM: 50, ThicknessMM: 16},
		{JobKey: "A", TotalPlates: 10, LengthMM: 100, WidthMM: 50, ThicknessMM: 19},
		{JobKey: "A", TotalPlates: 10, LengthMM: 100, WidthMM: 60},
		{JobKey: "A", TotalPlates: 10, LengthMM: 200, WidthMM: 50},
		{JobKey: "B", TotalPlates: 10, LengthMM: 100},
	}
	for i := range want {
		if jobs[i] != want[i] {
			t.Errorf("jobs[%d] = %+v, want %+v", i, jobs[i], want[i])
		}
	}
}

func TestJobsPlatesMatchDailyTotals(t *testing.T) {
	engine := NewEngine(&sliceStore{recs: mixedRecords()})
	ctx := context.Background()

	daily, err := engine.Daily(ctx, cut.DateRange{})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range daily {
		day, err := cut.ParseDate(d.Date)
		if err != nil {
			t.Fatal(err)
		}
		jobs, err := engine.Jobs(ctx, cut.DateRange{From: day, To: day}, JobOptions{})
		if err != nil {
			t.Fatal(err)
		}
		sum := 0
		for _, j := range jobs {
			sum += j.TotalPlates
		}
		if sum != d.TotalPlates {
			t.Errorf("%s: job plates sum = %d, daily total = %d", d.Date, sum, d.TotalPlates)
		}
	}
}

func TestThickness(t *testing.T) {
	rows, err := NewEngine(&sliceStore{recs: mixedRecords()}).Thickness(context.Background(), cut.DateRange{})
	if err != nil {
		t.Fatalf("Thickness() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].ThicknessMM != 3 || rows[1].ThicknessMM != 15 || rows[2].ThicknessMM != 18 {
		t.Errorf("thickness order = %v, %v, %v", rows[0].ThicknessMM, rows[1].ThicknessMM, rows[2].ThicknessMM)
	}
	r18 := rows[2]
	if r18.Records != 3 || r18.TotalPlates != 340 || r18.DistinctJobs != 2 {
		t.Errorf("18mm = %+v", r18)
	}
	if !approx(r18.AvgDurationSeconds, (1800+600+1200)/3.0) {
		t.Errorf("18mm AvgDurationSeconds = %v", r18.AvgDurationSeconds)
	}
}

func TestSummary(t *testing.T) {
	recs := append(mixedRecords(),
		rec("E", 12, "08:00", "09:00", 18, 1),
		rec("F", 12, "08:30", "09:00", 18, 1),
	)
	s, err := NewEngine(&sliceStore{recs: recs}).Summary(context.Background(), cut.DateRange{})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	if s.Records != 8 || s.TotalPlates != 547 || s.DistinctJobs != 6 || s.ActiveDays != 4 {
		t.Errorf("records/plates/jobs/days = %d/%d/%d/%d", s.Records, s.TotalPlates, s.DistinctJobs, s.ActiveDays)
	}
	if s.HighlightThicknessMM != 18 || s.HighlightPlates != 342 {
		t.Errorf("highlight = %v mm / %d plates, want 18 / 342", s.HighlightThicknessMM, s.HighlightPlates)
	}
	if s.AnomalousDays != 1 {
		t.Errorf("AnomalousDays = %d, want 1", s.AnomalousDays)
	}

	// Day spans: 9th 360, 10th 7800, 11th 5400, 12th 3600.
	if s.SpanSeconds != 360+7800+5400+3600 {
		t.Errorf("SpanSeconds = %d", s.SpanSeconds)
	}
	// Productive: 360 + 5100 + 4800 + 3600 (clamped).
	if s.ProductiveSeconds != 360+5100+4800+3600 {
		t.Errorf("ProductiveSeconds = %d", s.ProductiveSeconds)
	}
	if s.ProductivityPercent < 0 || s.ProductivityPercent > 100 {
		t.Errorf("ProductivityPercent = %v", s.ProductivityPercent)
	}
	if !approx(s.AvgPlatesPerDay, 547/4.0) {
		t.Errorf("AvgPlatesPerDay = %v", s.AvgPlatesPerDay)
	}
}

func TestSummary_Empty(t *testing.T) {
	s, err := NewEngine(&sliceStore{}, WithHighlightThickness(16)).Summary(context.Background(), cut.DateRange{})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s.Records != 0 || s.ProductivityPercent != 0 || s.AvgDurationSeconds != 0 {
		t.Errorf("empty summary = %+v", s)
	}
	if s.HighlightThicknessMM != 16 {
		t.Errorf("HighlightThicknessMM = %v, want 16", s.HighlightThicknessMM)
	}
}

func TestEngine_DateRangeFilter(t *testing.T) {
	engine := NewEngine(&sliceStore{recs: mixedRecords()})
	rng := cut.DateRange{
		From: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
	}
	report, err := engine.Report(context.Background(), rng, JobOptions{})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if len(report.Daily) != 1 || report.Daily[0].Date != "2024-03-10" {
		t.Errorf("Daily = %+v", report.Daily)
	}
	if report.Summary.Records != 3 || report.Summary.From != "2024-03-10" {
		t.Errorf("Summary = %+v", report.Summary)
	}
	if len(report.Jobs) != 2 || len(report.Thickness) != 2 || len(report.Idle) != 1 {
		t.Errorf("jobs/thickness/idle = %d/%d/%d", len(report.Jobs), len(report.Thickness), len(report.Idle))
	}
}

func TestEngine_SourceError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewEngine(&sliceStore{recs: mixedRecords(), err: boom}).Daily(context.Background(), cut.DateRange{})
	if !errors.Is(err, boom) {
		t.Errorf("Daily() error = %v, want %v", err, boom)
	}
}

func TestParseJobSort(t *testing.T) {
	for _, s := range []string{"", "plates", "RECORDS", "total_time", "avg_duration"} {
		if _, err := ParseJobSort(s); err != nil {
			t.Errorf("ParseJobSort(%q) error = %v", s, err)
		}
	}
	if _, err := ParseJobSort("volume"); err == nil {
		t.Error("ParseJobSort(volume) expected error")
	}
}
