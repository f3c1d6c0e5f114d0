package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/hotsteps/steps"
)

// DefaultDebounce is the quiet period a Watcher waits for after the last
// file event before reloading. Editors often emit several events per save.
const DefaultDebounce = 100 * time.Millisecond

// LoadFunc reads a step source and builds its Sequence.
type LoadFunc func(path string) (steps.Sequence, error)

// Watcher reloads a step source file whenever it changes and applies the
// resulting sequence through a Runner.
//
// The parent directory is watched rather than the file itself so that
// editors replacing the file on save (write to temp, rename over) keep
// triggering reloads. Load errors are logged and the previous sequence
// stays in place until the next successful save.
type Watcher struct {
	path     string
	load     LoadFunc
	runner   *Runner
	debounce time.Duration
	logger   *slog.Logger

	// onReload, if set, observes every reload attempt. Tests use it.
	onReload func(err error)
}

// NewWatcher creates a Watcher for path. A non-positive debounce uses
// DefaultDebounce; a nil logger uses slog.Default().
func NewWatcher(path string, load LoadFunc, runner *Runner, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		load:     load,
		runner:   runner,
		debounce: debounce,
		logger:   logger.With("component", "watcher", "path", path),
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation and an
// error if the watch cannot be set up or the event stream breaks.
func (w *Watcher) Run(ctx context.Context) error {
	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	w.logger.Info("watching step script")

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			w.reload(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	seq, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("script reload failed; keeping current steps", "error", err)
		w.notify(err)
		return
	}

	w.logger.Info("script changed; reconciling", "steps", len(seq))
	if err := w.runner.Apply(ctx, seq); err != nil {
		w.logger.Error("reconciliation failed", "error", err)
		w.notify(err)
		return
	}
	w.notify(nil)
}

func (w *Watcher) notify(err error) {
	if w.onReload != nil {
		w.onReload(err)
	}
}
