package aggregate

import (
	"context"

	"github.com/lcdc/cutlog/pkg/cut"
)

// Projection folds cut records into one aggregate view.
// Each view (daily, jobs, thickness, idle, summary) implements this interface
// and exposes its own typed Finalize.
type Projection interface {
	// Name returns the view name for logging.
	Name() string

	// Process handles a single record, updating internal state.
	Process(ctx context.Context, rec *cut.Record) error

	// Reset clears internal state for reuse.
	Reset()
}

// RecordStore is where the engine reads committed records from.
type RecordStore interface {
	Records(ctx context.Context, r cut.DateRange) (cut.Source, error)
}

// Reader is the read API consumed by the presentation layer. The engine
// implements it directly; the cache package wraps it with a TTL cache.
type Reader interface {
	Daily(ctx context.Context, r cut.DateRange) ([]DailyMetrics, error)
	Jobs(ctx context.Context, r cut.DateRange, opts JobOptions) ([]JobMetrics, error)
	Thickness(ctx context.Context, r cut.DateRange) ([]ThicknessMetrics, error)
	Idle(ctx context.Context, r cut.DateRange) ([]IdleMetrics, error)
	Summary(ctx context.Context, r cut.DateRange) (*Summary, error)
	Report(ctx context.Context, r cut.DateRange, opts JobOptions) (*Report, error)
}
