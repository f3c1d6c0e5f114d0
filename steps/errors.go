// Package steps reconciles and executes ordered sequences of undoable steps.
package steps

import "errors"

// ErrInconsistentState indicates that the engine found a step in a state
// that sequential use can never produce, typically because an earlier step
// failure left an entry stuck in Running or Undoing. The engine cannot
// recover from it; construct a new Engine.
var ErrInconsistentState = errors.New("inconsistent step state")

// ErrInvalidSequence indicates a sequence with a missing operation or with
// empty or duplicate step IDs.
var ErrInvalidSequence = errors.New("invalid step sequence")

// Error codes carried by EngineError and StepError.
const (
	CodeInconsistentState = "INCONSISTENT_STATE"
	CodeInvalidSequence   = "INVALID_SEQUENCE"
	CodeInvalidOption     = "INVALID_OPTION"
	CodeStepFailed        = "STEP_FAILED"
	CodeUndoFailed        = "UNDO_FAILED"
	CodeStepTimeout       = "STEP_TIMEOUT"
)

// EngineError represents an engine-level failure.
type EngineError struct {
	// Message is the human-readable description.
	Message string

	// Code is a machine-readable error code.
	Code string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

func inconsistent(msg string) error {
	return &EngineError{Message: msg, Code: CodeInconsistentState, Cause: ErrInconsistentState}
}

// Phase names the part of a step that failed.
const (
	PhaseDo   = "do"
	PhaseUndo = "undo"
)

// StepError wraps an error returned by a step operation or undo action.
// The engine never handles it: the failing entry stays Running (or
// Undoing) and the error propagates to the caller.
type StepError struct {
	// StepID identifies the failing step.
	StepID string

	// Index is the position of the step in the tracked sequence.
	Index int

	// Phase is PhaseDo or PhaseUndo.
	Phase string

	// Code is CodeStepFailed, CodeUndoFailed or CodeStepTimeout.
	Code string

	// Cause is the error returned by the step.
	Cause error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	msg := "step " + e.StepID + ": " + e.Phase + " failed"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *StepError) Unwrap() error {
	return e.Cause
}
