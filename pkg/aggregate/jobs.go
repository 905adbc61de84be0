package aggregate

import (
	"context"
	"sort"

	"github.com/lcdc/cutlog/pkg/cut"
)

type jobGroup struct {
	jobKey               string
	length, width, thick float64
}

type jobState struct {
	area, volume float64
	records      int
	plates       int
	first, last  string
	duration     int64
}

// JobsProjection groups records by job key and board dimensions.
type JobsProjection struct {
	jobs map[jobGroup]*jobState
}

// NewJobsProjection creates an empty job projection.
func NewJobsProjection() *JobsProjection {
	p := &JobsProjection{}
	p.Reset()
	return p
}

func (p *JobsProjection) Name() string { return "jobs" }

func (p *JobsProjection) Reset() {
	p.jobs = make(map[jobGroup]*jobState)
}

func (p *JobsProjection) Process(_ context.Context, rec *cut.Record) error {
	key := jobGroup{jobKey: rec.JobKey, length: rec.LengthMM, width: rec.WidthMM, thick: rec.ThicknessMM}
	day := rec.DayKey()

	s, ok := p.jobs[key]
	if !ok {
		s = &jobState{area: rec.AreaMM2, volume: rec.VolumeMM3, first: day, last: day}
		p.jobs[key] = s
	}
	s.records++
	s.plates += rec.PlateCount
	s.duration += rec.DurationSeconds
	if day < s.first {
		s.first = day
	}
	if day > s.last {
		s.last = day
	}
	return nil
}

// Finalize returns the job rows ordered by opts.Sort and truncated to opts.Top.
func (p *JobsProjection) Finalize(opts JobOptions) []JobMetrics {
	out := make([]JobMetrics, 0, len(p.jobs))
	for key, s := range p.jobs {
		out = append(out, JobMetrics{
			JobKey:               key.jobKey,
			LengthMM:             key.length,
			WidthMM:              key.width,
			ThicknessMM:          key.thick,
			AreaMM2:              s.area,
			VolumeMM3:            s.volume,
			Records:              s.records,
			TotalPlates:          s.plates,
			FirstDate:            s.first,
			LastDate:             s.last,
			AvgDurationSeconds:   float64(s.duration) / float64(s.records),
			TotalDurationSeconds: s.duration,
		})
	}

	SortJobs(out, opts.Sort)
	if opts.Top > 0 && len(out) > opts.Top {
		out = out[:opts.Top]
	}
	return out
}

// SortJobs orders job rows by the primary key descending, then job key,
// length, width and thickness ascending.
func SortJobs(jobs []JobMetrics, by JobSort) {
	primary := func(m *JobMetrics) float64 {
		switch by {
		case SortRecords:
			return float64(m.Records)
		case SortTotalTime:
			return float64(m.TotalDurationSeconds)
		case SortAvgDuration:
			return m.AvgDurationSeconds
		default:
			return float64(m.TotalPlates)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		a, b := &jobs[i], &jobs[j]
		if pa, pb := primary(a), primary(b); pa != pb {
			return pa > pb
		}
		if a.JobKey != b.JobKey {
			return a.JobKey < b.JobKey
		}
		if a.LengthMM != b.LengthMM {
			return a.LengthMM < b.LengthMM
		}
		if a.WidthMM != b.WidthMM {
			return a.WidthMM < b.WidthMM
		}
		return a.ThicknessMM < b.ThicknessMM
	})
}
