// Package store provides journals of engine state transitions.
//
// A journal is an append-only audit trail. Engines write to it on every
// transition and never read it back, so it carries no state across process
// restarts; it exists for inspection (the hotsteps history command, tests,
// dashboards).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run has no transitions.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Transition is one recorded state change of a tracked step.
type Transition struct {
	// RunID identifies the engine that produced the transition.
	RunID string

	// Seq is the per-run transition counter, starting at 1.
	Seq int64

	// Index is the step position, or -1 for sequence-level transitions.
	Index int

	// StepID identifies the step. Empty for sequence-level transitions.
	StepID string

	// State is the state kind name after the transition, or the event name
	// for sequence-level transitions.
	State string

	// Cursor is the engine's last-ran index when the transition happened.
	Cursor int

	// At is the wall-clock time of the transition.
	At time.Time
}

// Store persists transition journals.
//
// Implementations:
//   - MemStore: in-memory, for tests and short sessions
//   - SQLiteStore: single-file database, for local development
//   - MySQLStore: shared database for teams inspecting runs together
type Store interface {
	// AppendTransition records t. Transitions of one run are appended in
	// Seq order by a single engine.
	AppendTransition(ctx context.Context, t Transition) error

	// History returns every transition of runID ordered by Seq.
	// Returns ErrNotFound if the run has none.
	History(ctx context.Context, runID string) ([]Transition, error)

	// Latest returns the transition with the highest Seq for runID.
	// Returns ErrNotFound if the run has none.
	Latest(ctx context.Context, runID string) (Transition, error)

	// Runs lists run IDs with at least one transition, oldest first.
	Runs(ctx context.Context) ([]string, error)

	// Clear removes the journal of runID.
	Clear(ctx context.Context, runID string) error

	// Close releases resources held by the store.
	Close() error
}
