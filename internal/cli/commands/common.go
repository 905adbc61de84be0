package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/cut"
	"github.com/lcdc/cutlog/pkg/detector"
	"github.com/lcdc/cutlog/pkg/ingest"
	"github.com/lcdc/cutlog/pkg/logger"
	"github.com/lcdc/cutlog/pkg/output"
	"github.com/lcdc/cutlog/pkg/parser"
	"github.com/lcdc/cutlog/pkg/store"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// setup loads the config and builds the logger from it. Logs go to stderr
// so stdout stays clean for reports.
func setup(ctx context.Context, configPath string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, db config.DatabaseConfig, log *logger.Logger) (*store.Store, error) {
	st, err := store.Open(db, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return st, nil
}

// openReadStore opens an existing store without creating or migrating it.
func openReadStore(ctx context.Context, db config.DatabaseConfig, log *logger.Logger) (*store.Store, error) {
	st, err := store.OpenExisting(db, log)
	if errors.Is(err, store.ErrNoDatabase) {
		return nil, fmt.Errorf("%w (run ingest first)", err)
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if !st.HasSchema(ctx) {
		st.Close()
		return nil, errors.New("store has no cutlog schema (run ingest first)")
	}
	return st, nil
}

// layoutResolver maps the configured layout to a resolver. "auto" samples
// each file and picks the best-scoring layout, falling back to standard
// when nothing scores well enough.
func layoutResolver(name string) (ingest.LayoutResolver, error) {
	if name == config.LayoutAuto {
		d := detector.New()
		return func(ctx context.Context, path string) (*parser.Layout, error) {
			l, err := d.Resolve(ctx, path)
			if errors.Is(err, detector.ErrNoLayout) {
				return &parser.Standard, nil
			}
			return l, err
		}, nil
	}
	l, err := parser.LayoutByName(name)
	if err != nil {
		return nil, err
	}
	return ingest.FixedLayout(l), nil
}

func createFormatter(format string, verbose, quiet bool) (output.Formatter, error) {
	return output.NewFormatter(format, output.FormatOptions{
		Verbose: verbose,
		Quiet:   quiet,
	})
}

// parseRange parses optional YYYY-MM-DD bounds.
func parseRange(from, to string) (cut.DateRange, error) {
	var r cut.DateRange
	var err error
	if from != "" {
		if r.From, err = cut.ParseDate(from); err != nil {
			return r, fmt.Errorf("invalid --from %q: expected YYYY-MM-DD", from)
		}
	}
	if to != "" {
		if r.To, err = cut.ParseDate(to); err != nil {
			return r, fmt.Errorf("invalid --to %q: expected YYYY-MM-DD", to)
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return r, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
