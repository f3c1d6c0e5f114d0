// Package emit provides event emission and observability for step execution.
package emit

// Event represents an observability event emitted while an engine
// reconciles or navigates a step sequence.
//
// Events mirror the engine's state transitions:
//   - step_running, step_ran: forward execution of one step
//   - step_undoing, step_undone: rollback of one step
//   - sequence_replaced: a reconciliation swapped in a new sequence
//   - step_failed: a step operation or undo action returned an error
type Event struct {
	// RunID identifies the engine that emitted this event.
	RunID string

	// Index is the position of the step in the tracked sequence.
	// -1 for sequence-level events.
	Index int

	// StepID identifies the step. Empty for sequence-level events.
	StepID string

	// Msg is the event name.
	Msg string

	// Meta contains additional structured data.
	// Common keys:
	//   - "state": state kind after the transition
	//   - "cursor": index of the last step that ran
	//   - "seq": per-engine transition counter
	//   - "duration_ms": step or undo duration in milliseconds
	//   - "error": error details
	Meta map[string]interface{}
}

// Event names emitted by the engine.
const (
	MsgSequenceReplaced = "sequence_replaced"
	MsgStepRunning      = "step_running"
	MsgStepRan          = "step_ran"
	MsgStepUndoing      = "step_undoing"
	MsgStepUndone       = "step_undone"
	MsgStepFailed       = "step_failed"
)
