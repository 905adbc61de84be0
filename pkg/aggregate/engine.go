package aggregate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lcdc/cutlog/pkg/cut"
	"github.com/lcdc/cutlog/pkg/logger"
)

// Engine computes aggregate views by streaming committed records through
// projections. It holds no state between calls.
type Engine struct {
	store     RecordStore
	highlight float64
	log       *logger.Logger
}

// EngineOption configures engine behavior.
type EngineOption func(*Engine)

// WithHighlightThickness sets the thickness called out by Summary.
func WithHighlightThickness(mm float64) EngineOption {
	return func(e *Engine) {
		if mm > 0 {
			e.highlight = mm
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *logger.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates an engine reading from store.
func NewEngine(store RecordStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		highlight: DefaultHighlightThicknessMM,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Reader = (*Engine)(nil)

// Run streams every record in the range through the projections once and
// returns the number of records processed.
func (e *Engine) Run(ctx context.Context, r cut.DateRange, projections ...Projection) (int, error) {
	for _, p := range projections {
		p.Reset()
	}

	src, err := e.store.Records(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("opening record source: %w", err)
	}
	defer src.Close()

	start := time.Now()
	n := 0
	for {
		rec, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reading records: %w", err)
		}
		// Sources are expected to filter by date; records outside the range are skipped anyway.
		if !r.Contains(rec.Day()) {
			continue
		}
		for _, p := range projections {
			if err := p.Process(ctx, rec); err != nil {
				return n, fmt.Errorf("%s projection: %w", p.Name(), err)
			}
		}
		n++
	}

	e.log.Debug("aggregation pass complete", "range", r.String(), "records", n, "elapsed", time.Since(start))
	return n, nil
}

func (e *Engine) Daily(ctx context.Context, r cut.DateRange) ([]DailyMetrics, error) {
	p := NewDailyProjection()
	if _, err := e.Run(ctx, r, p); err != nil {
		return nil, err
	}
	return p.Finalize(), nil
}

func (e *Engine) Jobs(ctx context.Context, r cut.DateRange, opts JobOptions) ([]JobMetrics, error) {
	p := NewJobsProjection()
	if _, err := e.Run(ctx, r, p); err != nil {
		return nil, err
	}
	return p.Finalize(opts), nil
}

func (e *Engine) Thickness(ctx context.Context, r cut.DateRange) ([]ThicknessMetrics, error) {
	p := NewThicknessProjection()
	if _, err := e.Run(ctx, r, p); err != nil {
		return nil, err
	}
	return p.Finalize(), nil
}

func (e *Engine) Idle(ctx context.Context, r cut.DateRange) ([]IdleMetrics, error) {
	p := NewIdleProjection()
	if _, err := e.Run(ctx, r, p); err != nil {
		return nil, err
	}
	return p.Finalize(), nil
}

func (e *Engine) Summary(ctx context.Context, r cut.DateRange) (*Summary, error) {
	p := NewSummaryProjection(e.highlight)
	if _, err := e.Run(ctx, r, p); err != nil {
		return nil, err
	}
	return p.Finalize(r), nil
}

// Report computes every view in a single pass over the records.
func (e *Engine) Report(ctx context.Context, r cut.DateRange, opts JobOptions) (*Report, error) {
	daily := NewDailyProjection()
	jobs := NewJobsProjection()
	thickness := NewThicknessProjection()
	idle := NewIdleProjection()
	summary := NewSummaryProjection(e.highlight)

	if _, err := e.Run(ctx, r, daily, jobs, thickness, idle, summary); err != nil {
		return nil, err
	}
	return &Report{
		Summary:   summary.Finalize(r),
		Daily:     daily.Finalize(),
		Jobs:      jobs.Finalize(opts),
		Thickness: thickness.Finalize(),
		Idle:      idle.Finalize(),
	}, nil
}
