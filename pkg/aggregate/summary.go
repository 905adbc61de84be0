package aggregate

import (
	"context"

	"github.com/lcdc/cutlog/pkg/cut"
)

// DefaultHighlightThicknessMM is the board thickness singled out in summaries.
const DefaultHighlightThicknessMM = 18

// SummaryProjection computes the period KPIs. It keeps its own idle
// projection for the span and productivity figures.
type SummaryProjection struct {
	highlight float64

	records         int
	plates          int
	duration        int64
	highlightPlates int
	jobs            map[string]struct{}
	idle            *IdleProjection
}

// NewSummaryProjection creates a summary projection highlighting the given
// thickness. A non-positive thickness selects the default.
func NewSummaryProjection(highlightMM float64) *SummaryProjection {
	if highlightMM <= 0 {
		highlightMM = DefaultHighlightThicknessMM
	}
	p := &SummaryProjection{highlight: highlightMM, idle: NewIdleProjection()}
	p.Reset()
	return p
}

func (p *SummaryProjection) Name() string { return "summary" }

func (p *SummaryProjection) Reset() {
	p.records = 0
	p.plates = 0
	p.duration = 0
	p.highlightPlates = 0
	p.jobs = make(map[string]struct{})
	p.idle.Reset()
}

func (p *SummaryProjection) Process(ctx context.Context, rec *cut.Record) error {
	p.records++
	p.plates += rec.PlateCount
	p.duration += rec.DurationSeconds
	p.jobs[rec.JobKey] = struct{}{}
	if rec.ThicknessMM == p.highlight {
		p.highlightPlates += rec.PlateCount
	}
	return p.idle.Process(ctx, rec)
}

// Finalize returns the KPIs for the records seen, labelled with the range.
func (p *SummaryProjection) Finalize(r cut.DateRange) *Summary {
	s := &Summary{
		Records:              p.records,
		TotalPlates:          p.plates,
		DistinctJobs:         len(p.jobs),
		HighlightThicknessMM: p.highlight,
		HighlightPlates:      p.highlightPlates,
	}
	if !r.From.IsZero() {
		s.From = r.From.Format(cut.DateLayout)
	}
	if !r.To.IsZero() {
		s.To = r.To.Format(cut.DateLayout)
	}
	if p.records > 0 {
		s.AvgDurationSeconds = float64(p.duration) / float64(p.records)
	}

	days := p.idle.Finalize()
	s.ActiveDays = len(days)
	for _, d := range days {
		s.SpanSeconds += d.SpanSeconds
		// Idle is clamped on anomalous days, so they count as fully productive.
		s.ProductiveSeconds += d.SpanSeconds - d.IdleSeconds
		if d.Anomalous {
			s.AnomalousDays++
		}
	}
	if s.ActiveDays > 0 {
		s.AvgPlatesPerDay = float64(p.plates) / float64(s.ActiveDays)
	}
	if s.SpanSeconds > 0 {
		s.ProductivityPercent = 100 * float64(s.ProductiveSeconds) / float64(s.SpanSeconds)
	}
	return s
}
