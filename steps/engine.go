package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/hotsteps/steps/emit"
	"github.com/dshills/hotsteps/steps/store"
)

// Engine tracks how far an ordered Sequence has executed and moves that
// position forward (advance) and backward (rewind).
//
// The Engine:
//   - Reconciles a new Sequence against the tracked one (Apply), undoing
//     only the steps after the unchanged prefix and running only up to the
//     unchanged suffix
//   - Moves the cursor to a named step (NavigateTo)
//   - Runs undo actions in reverse registration order
//   - Publishes a snapshot of every entry on each state transition
//   - Optionally emits events, journals transitions and records metrics
//
// An Engine is not reentrant. Apply and NavigateTo must not run
// concurrently with each other; callers serialize them, for instance with
// reload.Runner. Subscribe, States and the other read accessors may be
// used from subscriber callbacks.
//
// Example:
//
//	engine, err := steps.New(steps.WithRunID("demo"))
//	if err != nil {
//	    return err
//	}
//	unsubscribe := engine.Subscribe(func(states []steps.StepStatus) {
//	    fmt.Println(states)
//	})
//	defer unsubscribe()
//
//	if err := engine.Apply(ctx, steps.Seq(setup, login, fill)); err != nil {
//	    return err
//	}
//	// After editing fill:
//	err = engine.Apply(ctx, steps.Seq(setup, login, fillEdited))
type Engine struct {
	// entries is the tracked sequence
	entries []*TrackedEntry

	// lastRan is the index of the last entry in state Ran, -1 when none
	lastRan int

	runID   string
	emitter emit.Emitter
	store   store.Store
	metrics *PrometheusMetrics
	logger  *slog.Logger
	policy  OverlapPolicy
	same    func(a, b Step) bool

	subs notifier
	seq  int64
}

// New creates an Engine with an empty tracked sequence.
func New(opts ...Option) (*Engine, error) {
	cfg := engineConfig{}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.emitter == nil {
		cfg.emitter = emit.NewNullEmitter()
	}

	return &Engine{
		lastRan: -1,
		runID:   cfg.runID,
		emitter: cfg.emitter,
		store:   cfg.store,
		metrics: cfg.metrics,
		logger:  cfg.logger.With("run_id", cfg.runID),
		policy:  cfg.policy,
		same:    cfg.comparator.StepsEqual,
	}, nil
}

// RunID returns the engine's run identifier.
func (e *Engine) RunID() string { return e.runID }

// Cursor returns the index of the last step that ran, or -1.
func (e *Engine) Cursor() int { return e.lastRan }

// Len returns the number of tracked steps.
func (e *Engine) Len() int { return len(e.entries) }

// States returns a snapshot of the tracked steps and their state kinds.
func (e *Engine) States() []StepStatus { return snapshot(e.entries) }

// Result returns the result of the step with the given ID if it is in
// state Ran.
func (e *Engine) Result(stepID string) (any, bool) {
	for _, entry := range e.entries {
		if entry.Step.ID == stepID && entry.State.Kind == Ran {
			return entry.State.Result, true
		}
	}
	return nil, false
}

// Subscribe registers fn to receive a snapshot after every state
// transition. Delivery is synchronous and ordered; fn must not call Apply
// or NavigateTo. The returned function unsubscribes and is idempotent.
func (e *Engine) Subscribe(fn func([]StepStatus)) (unsubscribe func()) {
	return e.subs.subscribe(fn)
}

// Apply reconciles the tracked sequence with next.
//
// Steps:
//  1. Diff the tracked entries against next.
//  2. Rewind every step from the unchanged prefix onward.
//  3. Replace the tracked entries. Prefix entries keep their state (and the
//     step value from next); all others start NotRun.
//  4. Publish the new sequence.
//  5. Advance up to the step just before the unchanged suffix.
//
// Applying the same sequence twice runs nothing the second time.
// Step failures are returned as *StepError and leave the engine stuck.
func (e *Engine) Apply(ctx context.Context, next Sequence) error {
	for i, st := range next {
		if st.Do == nil {
			return &EngineError{
				Message: fmt.Sprintf("step %q at index %d has no operation", st.ID, i),
				Code:    CodeInvalidSequence,
				Cause:   ErrInvalidSequence,
			}
		}
	}

	d := diff(e.entries, next, e.policy, e.same)
	e.logger.Debug("reconciling sequence",
		"tracked", len(e.entries),
		"steps", len(next),
		"unchanged_prefix", d.UnchangedPrefix,
		"unchanged_suffix", d.UnchangedSuffix,
		"raw_suffix", d.RawSuffix,
	)

	if err := e.rewindBefore(ctx, d.UnchangedPrefix); err != nil {
		return err
	}

	entries := make([]*TrackedEntry, len(next))
	for i, st := range next {
		if i < d.UnchangedPrefix && e.entries[i].State.Kind != Undone {
			kept := e.entries[i]
			kept.Step = st
			entries[i] = kept
			continue
		}
		entries[i] = newEntry(st)
	}
	e.entries = entries

	e.metrics.RecordReconciliation(e.runID, d.UnchangedPrefix)
	e.changed(ctx, emit.MsgSequenceReplaced, -1)

	return e.advanceTo(ctx, len(next)-1-d.UnchangedSuffix)
}

// NavigateTo moves the cursor to the first step with the given ID without
// diffing: steps after it are undone in reverse order, steps up to and
// including it are run in order. Navigating to the step the cursor is on
// does nothing. An unknown ID is a no-op.
func (e *Engine) NavigateTo(ctx context.Context, stepID string) error {
	idx := -1
	for i, entry := range e.entries {
		if entry.Step.ID == stepID {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.logger.Debug("navigation target not tracked", "step_id", stepID)
		return nil
	}

	if err := e.rewindBefore(ctx, idx+1); err != nil {
		return err
	}
	return e.advanceTo(ctx, idx)
}

// rewindBefore undoes entries until lastRan < target.
func (e *Engine) rewindBefore(ctx context.Context, target int) error {
	if target < 0 {
		target = 0
	}
	for i := target; i < len(e.entries); i++ {
		if k := e.entries[i].State.Kind; k == Running || k == Undoing {
			return inconsistent(fmt.Sprintf("cannot rewind past step %q at index %d in state %s",
				e.entries[i].Step.ID, i, k))
		}
	}

	for e.lastRan >= target {
		idx := e.lastRan
		entry := e.entries[idx]
		if entry.State.Kind != Ran {
			return inconsistent(fmt.Sprintf("rewinding step %q at index %d in state %s",
				entry.Step.ID, idx, entry.State.Kind))
		}

		undos := entry.State.Undos
		entry.State = StepState{Kind: Undoing}
		e.changed(ctx, emit.MsgStepUndoing, idx)

		start := time.Now()
		for i := len(undos) - 1; i >= 0; i-- {
			if err := undos[i](ctx); err != nil {
				return e.failed(idx, PhaseUndo, CodeUndoFailed, time.Since(start), err)
			}
		}
		e.metrics.RecordStepLatency(e.runID, entry.Step.ID, PhaseUndo, time.Since(start), "success")

		entry.State = StepState{Kind: Undone}
		e.lastRan--
		e.changed(ctx, emit.MsgStepUndone, idx)
	}
	return nil
}

// advanceTo runs entries until lastRan == target.
func (e *Engine) advanceTo(ctx context.Context, target int) error {
	if target >= len(e.entries) {
		target = len(e.entries) - 1
	}

	for e.lastRan < target {
		idx := e.lastRan + 1
		entry := e.entries[idx]

		var input any
		if e.lastRan >= 0 {
			prev := e.entries[e.lastRan]
			if prev.State.Kind != Ran {
				return inconsistent(fmt.Sprintf("predecessor %q at index %d is in state %s",
					prev.Step.ID, e.lastRan, prev.State.Kind))
			}
			input = prev.State.Result
		}

		switch entry.State.Kind {
		case NotRun:
		case Undone:
			entry = newEntry(entry.Step)
			e.entries[idx] = entry
		default:
			return inconsistent(fmt.Sprintf("cannot run step %q at index %d in state %s",
				entry.Step.ID, idx, entry.State.Kind))
		}

		entry.State = StepState{Kind: Running}
		e.changed(ctx, emit.MsgStepRunning, idx)

		stepID := entry.Step.ID
		undos := &undoList{onLate: func() {
			e.logger.Warn("undo registered after step returned; ignored", "step_id", stepID)
		}}
		start := time.Now()
		result, err := entry.Step.Do(ctx, input, undos)
		collected := undos.seal()
		if err != nil {
			return e.failed(idx, PhaseDo, stepErrorCode(err), time.Since(start), err)
		}
		e.metrics.RecordStepLatency(e.runID, stepID, PhaseDo, time.Since(start), "success")

		entry.State = StepState{Kind: Ran, Result: result, Undos: collected}
		e.lastRan++
		e.changed(ctx, emit.MsgStepRan, idx)
	}
	return nil
}

// changed publishes a transition to subscribers, the emitter, the journal
// and the metrics, in that order.
func (e *Engine) changed(ctx context.Context, msg string, idx int) {
	e.subs.publish(snapshot(e.entries))

	e.seq++
	stepID, state := "", msg
	if idx >= 0 {
		stepID = e.entries[idx].Step.ID
		state = e.entries[idx].State.Kind.String()
	}

	e.emitter.Emit(emit.Event{
		RunID:  e.runID,
		Index:  idx,
		StepID: stepID,
		Msg:    msg,
		Meta: map[string]interface{}{
			"state":  state,
			"cursor": e.lastRan,
			"seq":    e.seq,
		},
	})

	if e.store != nil {
		err := e.store.AppendTransition(ctx, store.Transition{
			RunID:  e.runID,
			Seq:    e.seq,
			Index:  idx,
			StepID: stepID,
			State:  state,
			Cursor: e.lastRan,
			At:     time.Now(),
		})
		if err != nil {
			e.logger.Warn("journal append failed", "seq", e.seq, "error", err)
		}
	}

	if idx >= 0 {
		e.metrics.RecordTransition(e.runID, e.entries[idx].State.Kind)
	}
	e.metrics.UpdateCursor(e.runID, e.lastRan, len(e.entries))
}

func (e *Engine) failed(idx int, phase, code string, elapsed time.Duration, cause error) error {
	entry := e.entries[idx]
	e.metrics.RecordStepLatency(e.runID, entry.Step.ID, phase, elapsed, "error")
	e.logger.Error("step failed",
		"step_id", entry.Step.ID,
		"index", idx,
		"phase", phase,
		"error", cause,
	)
	e.emitter.Emit(emit.Event{
		RunID:  e.runID,
		Index:  idx,
		StepID: entry.Step.ID,
		Msg:    emit.MsgStepFailed,
		Meta: map[string]interface{}{
			"state":       entry.State.Kind.String(),
			"phase":       phase,
			"error":       cause.Error(),
			"duration_ms": elapsed.Milliseconds(),
		},
	})
	return &StepError{StepID: entry.Step.ID, Index: idx, Phase: phase, Code: code, Cause: cause}
}

// ValidateSequence reports empty or duplicate step IDs and missing
// operations.
//
// Apply itself only rejects missing operations: duplicate IDs are legal but
// make NavigateTo pick the first match. Loaders call ValidateSequence to
// reject such sequences up front.
func ValidateSequence(seq Sequence) error {
	seen := make(map[string]int, len(seq))
	for i, st := range seq {
		if st.ID == "" {
			return &EngineError{
				Message: fmt.Sprintf("step at index %d has an empty ID", i),
				Code:    CodeInvalidSequence,
				Cause:   ErrInvalidSequence,
			}
		}
		if st.Do == nil {
			return &EngineError{
				Message: fmt.Sprintf("step %q has no operation", st.ID),
				Code:    CodeInvalidSequence,
				Cause:   ErrInvalidSequence,
			}
		}
		if prev, dup := seen[st.ID]; dup {
			return &EngineError{
				Message: fmt.Sprintf("duplicate step ID %q at indexes %d and %d", st.ID, prev, i),
				Code:    CodeInvalidSequence,
				Cause:   ErrInvalidSequence,
			}
		}
		seen[st.ID] = i
	}
	return nil
}
