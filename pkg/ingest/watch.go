package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// RunHandler receives the result of each watch-triggered run.
type RunHandler func(report *Report, err error)

// Watch runs once immediately, then again each time files are created or
// written in the input directory, after debounce of quiet. Runs never
// overlap. A storage failure is handed to onRun and watching continues.
// Watch returns when ctx is cancelled.
func (o *Orchestrator) Watch(ctx context.Context, debounce time.Duration, onRun RunHandler) error {
	if debounce <= 0 {
		debounce = time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(o.inputDir); err != nil {
		return fmt.Errorf("watching %s: %w", o.inputDir, err)
	}
	o.log.Info("watching input directory", "dir", o.inputDir, "debounce", debounce)

	trigger := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				// Archive moves show up as Rename/Remove; only new content matters.
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				select {
				case trigger <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				o.log.Error("watcher error", "error", err)
			}
		}
	})

	g.Go(func() error {
		onRun(o.Run(gctx))

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-trigger:
				timer.Reset(debounce)
			case <-timer.C:
				if gctx.Err() != nil {
					return nil
				}
				onRun(o.Run(gctx))
			}
		}
	})

	return g.Wait()
}
