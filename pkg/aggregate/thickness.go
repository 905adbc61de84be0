package aggregate

import (
	"context"
	"sort"

	"github.com/lcdc/cutlog/pkg/cut"
)

type thicknessState struct {
	records  int
	plates   int
	duration int64
	area     float64
	jobs     map[string]struct{}
}

// ThicknessProjection groups records by board thickness.
type ThicknessProjection struct {
	groups map[float64]*thicknessState
}

// NewThicknessProjection creates an empty thickness projection.
func NewThicknessProjection() *ThicknessProjection {
	p := &ThicknessProjection{}
	p.Reset()
	return p
}

func (p *ThicknessProjection) Name() string { return "thickness" }

func (p *ThicknessProjection) Reset() {
	p.groups = make(map[float64]*thicknessState)
}

func (p *ThicknessProjection) Process(_ context.Context, rec *cut.Record) error {
	g, ok := p.groups[rec.ThicknessMM]
	if !ok {
		g = &thicknessState{jobs: make(map[string]struct{})}
		p.groups[rec.ThicknessMM] = g
	}
	g.records++
	g.plates += rec.PlateCount
	g.duration += rec.DurationSeconds
	g.area += rec.AreaMM2
	g.jobs[rec.JobKey] = struct{}{}
	return nil
}

// Finalize returns one row per thickness, thinnest first.
func (p *ThicknessProjection) Finalize() []ThicknessMetrics {
	out := make([]ThicknessMetrics, 0, len(p.groups))
	for thick, g := range p.groups {
		n := float64(g.records)
		out = append(out, ThicknessMetrics{
			ThicknessMM:        thick,
			Records:            g.records,
			TotalPlates:        g.plates,
			AvgDurationSeconds: float64(g.duration) / n,
			AvgAreaMM2:         g.area / n,
			DistinctJobs:       len(g.jobs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThicknessMM < out[j].ThicknessMM })
	return out
}
