package cut

import (
	"context"
	"time"
)

// Source provides an iterator over cut records.
// Implementations must be safe for sequential access (not concurrent).
type Source interface {
	// Next returns the next record.
	// Returns io.EOF when no more records are available.
	Next(ctx context.Context) (*Record, error)

	// Close releases any resources held by the source.
	Close() error
}

// DateRange is an inclusive calendar date filter. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the given day falls within the range.
func (r DateRange) Contains(day time.Time) bool {
	if !r.From.IsZero() && day.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && day.After(r.To) {
		return false
	}
	return true
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// String renders the range as "from..to" with open bounds left empty.
func (r DateRange) String() string {
	var from, to string
	if !r.From.IsZero() {
		from = r.From.Format(DateLayout)
	}
	if !r.To.IsZero() {
		to = r.To.Format(DateLayout)
	}
	return from + ".." + to
}
