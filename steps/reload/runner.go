// Package reload connects a steps.Engine to a changing step source.
//
// The engine is not reentrant: Apply and NavigateTo must never overlap.
// Runner owns the engine and executes every operation on a single worker
// goroutine, so any number of goroutines (a file watcher, a terminal prompt,
// an HTTP handler) can drive the same engine safely. Watcher re-reads a
// script file when it changes and hands the new sequence to a Runner.
package reload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/hotsteps/steps"
)

// ErrRunnerClosed is returned for operations submitted after Close, or
// after the context given to Start was cancelled.
var ErrRunnerClosed = errors.New("runner is closed")

// Runner serializes engine operations on one worker goroutine.
//
// Example:
//
//	runner := reload.NewRunner(engine, logger)
//	runner.Start(ctx)
//	defer runner.Close()
//
//	if err := runner.Apply(ctx, seq); err != nil {
//	    return err
//	}
type Runner struct {
	engine *steps.Engine
	logger *slog.Logger

	reqs      chan request
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

type request struct {
	ctx    context.Context
	op     string
	fn     func(ctx context.Context, e *steps.Engine) error
	result chan error
}

// NewRunner creates a Runner for engine. Call Start before submitting
// operations. A nil logger uses slog.Default().
func NewRunner(engine *steps.Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine: engine,
		logger: logger.With("component", "runner", "run_id", engine.RunID()),
		reqs:   make(chan request),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. The worker stops when ctx is cancelled or
// Close is called. Calling Start more than once has no effect.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.loop(ctx)
	})
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	defer r.shutdown()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("runner stopping", "reason", ctx.Err())
			return
		case <-r.done:
			return
		case req := <-r.reqs:
			req.result <- r.run(req)
		}
	}
}

func (r *Runner) run(req request) error {
	start := time.Now()
	err := req.fn(req.ctx, r.engine)
	if err != nil {
		r.logger.Error("operation failed", "op", req.op, "error", err)
		return err
	}
	r.logger.Debug("operation done",
		"op", req.op,
		"cursor", r.engine.Cursor(),
		"steps", r.engine.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Do runs fn on the worker goroutine and waits for its result. fn may use
// the engine freely; it must not submit further operations to the Runner.
//
// ctx bounds the wait for the worker to accept fn. Once accepted, fn runs
// to completion and Do waits for it.
func (r *Runner) Do(ctx context.Context, op string, fn func(ctx context.Context, e *steps.Engine) error) error {
	req := request{ctx: ctx, op: op, fn: fn, result: make(chan error, 1)}

	select {
	case <-r.done:
		return ErrRunnerClosed
	default:
	}

	select {
	case r.reqs <- req:
	case <-r.done:
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.result
}

// Apply reconciles the engine with seq.
func (r *Runner) Apply(ctx context.Context, seq steps.Sequence) error {
	return r.Do(ctx, "apply", func(ctx context.Context, e *steps.Engine) error {
		return e.Apply(ctx, seq)
	})
}

// NavigateTo moves the engine to the step with the given ID.
func (r *Runner) NavigateTo(ctx context.Context, stepID string) error {
	return r.Do(ctx, "navigate", func(ctx context.Context, e *steps.Engine) error {
		return e.NavigateTo(ctx, stepID)
	})
}

// States returns a snapshot of the tracked steps taken between operations.
func (r *Runner) States(ctx context.Context) ([]steps.StepStatus, error) {
	var states []steps.StepStatus
	err := r.Do(ctx, "states", func(_ context.Context, e *steps.Engine) error {
		states = e.States()
		return nil
	})
	return states, err
}

// Close stops the worker after the operation in flight, if any, and waits
// for it to exit. It is idempotent.
func (r *Runner) Close() error {
	r.shutdown()
	r.wg.Wait()
	return nil
}

func (r *Runner) shutdown() {
	r.closeOnce.Do(func() { close(r.done) })
}
