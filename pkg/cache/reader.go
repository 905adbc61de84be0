package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lcdc/cutlog/pkg/aggregate"
	"github.com/lcdc/cutlog/pkg/cut"
	"github.com/lcdc/cutlog/pkg/logger"
)

// Reader serves aggregate views from the cache, computing misses with the
// wrapped reader. Cache failures are logged and fall through to next.
type Reader struct {
	next  aggregate.Reader
	store Store
	ttl   time.Duration
	log   *logger.Logger
}

var _ aggregate.Reader = (*Reader)(nil)

// NewReader wraps next with a TTL cache held in st.
func NewReader(next aggregate.Reader, st Store, ttl time.Duration, log *logger.Logger) *Reader {
	if log == nil {
		log = logger.Nop()
	}
	return &Reader{next: next, store: st, ttl: ttl, log: log.With("service", "ReportCache")}
}

// Invalidate drops every cached view. Call it after records are committed.
func (c *Reader) Invalidate(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *Reader) Daily(ctx context.Context, r cut.DateRange) ([]aggregate.DailyMetrics, error) {
	return load(ctx, c, key("daily", r), func() ([]aggregate.DailyMetrics, error) {
		return c.next.Daily(ctx, r)
	})
}

func (c *Reader) Jobs(ctx context.Context, r cut.DateRange, opts aggregate.JobOptions) ([]aggregate.JobMetrics, error) {
	return load(ctx, c, key("jobs", r, string(opts.Sort), opts.Top), func() ([]aggregate.JobMetrics, error) {
		return c.next.Jobs(ctx, r, opts)
	})
}

func (c *Reader) Thickness(ctx context.Context, r cut.DateRange) ([]aggregate.ThicknessMetrics, error) {
	return load(ctx, c, key("thickness", r), func() ([]aggregate.ThicknessMetrics, error) {
		return c.next.Thickness(ctx, r)
	})
}

func (c *Reader) Idle(ctx context.Context, r cut.DateRange) ([]aggregate.IdleMetrics, error) {
	return load(ctx, c, key("idle", r), func() ([]aggregate.IdleMetrics, error) {
		return c.next.Idle(ctx, r)
	})
}

func (c *Reader) Summary(ctx context.Context, r cut.DateRange) (*aggregate.Summary, error) {
	return load(ctx, c, key("summary", r), func() (*aggregate.Summary, error) {
		return c.next.Summary(ctx, r)
	})
}

func (c *Reader) Report(ctx context.Context, r cut.DateRange, opts aggregate.JobOptions) (*aggregate.Report, error) {
	return load(ctx, c, key("report", r, string(opts.Sort), opts.Top), func() (*aggregate.Report, error) {
		return c.next.Report(ctx, r, opts)
	})
}

func key(view string, r cut.DateRange, parts ...any) string {
	k := view + ":" + r.String()
	for _, p := range parts {
		k += fmt.Sprintf(":%v", p)
	}
	return k
}

func load[T any](ctx context.Context, c *Reader, k string, compute func() (T, error)) (T, error) {
	raw, ok, err := c.store.Get(ctx, k)
	if err != nil {
		c.log.Warn("cache read failed", "key", k, "error", err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.log.Debug("cache hit", "key", k)
			return v, nil
		}
		c.log.Warn("discarding undecodable cache entry", "key", k)
	}

	v, err := compute()
	if err != nil {
		return v, err
	}

	raw, err = json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", k, "error", err)
		return v, nil
	}
	if err := c.store.Set(ctx, k, raw, c.ttl); err != nil {
		c.log.Warn("cache write failed", "key", k, "error", err)
	}
	return v, nil
}
