package aggregate

import (
	"context"
	"sort"

	"gorm.io/datatypes"

	"github.com/lcdc/cutlog/pkg/cut"
)

type dayWindow struct {
	first, last datatypes.Time
	productive  int64
	records     int
}

// IdleProjection computes per-day idle time: the machine span from the
// earliest start to the latest end, minus the summed record durations.
type IdleProjection struct {
	days map[string]*dayWindow
}

// NewIdleProjection creates an empty idle projection.
func NewIdleProjection() *IdleProjection {
	p := &IdleProjection{}
	p.Reset()
	return p
}

func (p *IdleProjection) Name() string { return "idle" }

func (p *IdleProjection) Reset() {
	p.days = make(map[string]*dayWindow)
}

func (p *IdleProjection) Process(_ context.Context, rec *cut.Record) error {
	key := rec.DayKey()
	w, ok := p.days[key]
	if !ok {
		w = &dayWindow{first: rec.StartTime, last: rec.EndTime}
		p.days[key] = w
	}
	if rec.StartTime < w.first {
		w.first = rec.StartTime
	}
	if rec.EndTime > w.last {
		w.last = rec.EndTime
	}
	w.productive += rec.DurationSeconds
	w.records++
	return nil
}

// Finalize returns one row per date, oldest first.
func (p *IdleProjection) Finalize() []IdleMetrics {
	out := make([]IdleMetrics, 0, len(p.days))
	for key, w := range p.days {
		out = append(out, idleFor(key, w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func idleFor(date string, w *dayWindow) IdleMetrics {
	span := cut.DurationSeconds(w.first, w.last)
	m := IdleMetrics{
		Date:              date,
		FirstStart:        cut.FormatClock(w.first),
		LastEnd:           cut.FormatClock(w.last),
		Records:           w.records,
		SpanSeconds:       span,
		ProductiveSeconds: w.productive,
	}

	idle := span - w.productive
	switch {
	case idle < 0:
		// Overlapping records: more work recorded than the span allows.
		m.Anomalous = true
	case span > 0:
		m.IdleSeconds = idle
		m.IdlePercent = 100 * float64(idle) / float64(span)
	}
	return m
}
