package aggregate

import (
	"context"
	"sort"

	"github.com/lcdc/cutlog/pkg/cut"
)

type dayState struct {
	records   int
	jobs      map[string]struct{}
	plates    int
	duration  int64
	area      float64
	plateArea float64
	thickness float64
	minThick  float64
	maxThick  float64
}

// DailyProjection groups records by process date.
type DailyProjection struct {
	days map[string]*dayState
}

// NewDailyProjection creates an empty daily projection.
func NewDailyProjection() *DailyProjection {
	p := &DailyProjection{}
	p.Reset()
	return p
}

func (p *DailyProjection) Name() string { return "daily" }

func (p *DailyProjection) Reset() {
	p.days = make(map[string]*dayState)
}

func (p *DailyProjection) Process(_ context.Context, rec *cut.Record) error {
	key := rec.DayKey()
	d, ok := p.days[key]
	if !ok {
		d = &dayState{
			jobs:     make(map[string]struct{}),
			minThick: rec.ThicknessMM,
			maxThick: rec.ThicknessMM,
		}
		p.days[key] = d
	}

	d.records++
	d.jobs[rec.JobKey] = struct{}{}
	d.plates += rec.PlateCount
	d.duration += rec.DurationSeconds
	d.area += rec.AreaMM2
	d.plateArea += rec.AreaMM2 * float64(rec.PlateCount)
	d.thickness += rec.ThicknessMM
	if rec.ThicknessMM < d.minThick {
		d.minThick = rec.ThicknessMM
	}
	if rec.ThicknessMM > d.maxThick {
		d.maxThick = rec.ThicknessMM
	}
	return nil
}

// Finalize returns one row per date, oldest first.
func (p *DailyProjection) Finalize() []DailyMetrics {
	out := make([]DailyMetrics, 0, len(p.days))
	for key, d := range p.days {
		n := float64(d.records)
		m := DailyMetrics{
			Date:                 key,
			Records:              d.records,
			DistinctJobs:         len(d.jobs),
			TotalPlates:          d.plates,
			AvgDurationSeconds:   float64(d.duration) / n,
			TotalDurationSeconds: d.duration,
			AvgAreaMM2:           d.area / n,
			TotalAreaMM2:         d.plateArea,
			AvgThicknessMM:       d.thickness / n,
			MinThicknessMM:       d.minThick,
			MaxThicknessMM:       d.maxThick,
		}
		if d.duration > 0 {
			m.PlatesPerHour = float64(d.plates) / (float64(d.duration) / 3600)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
