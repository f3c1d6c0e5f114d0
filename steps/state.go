package steps

// StateKind is the execution state of one tracked step.
//
// Per entry the only transitions are
//
//	NotRun -> Running -> Ran -> Undoing -> Undone
//
// Undone is terminal for the slot; a later advance or reconciliation puts a
// fresh NotRun entry in its place.
type StateKind int

const (
	// NotRun means no attempt was made yet.
	NotRun StateKind = iota
	// Running means Do was invoked and has not returned.
	Running
	// Ran means Do completed; the result and undo actions are retained.
	Ran
	// Undoing means the undo actions are being executed.
	Undoing
	// Undone means the step was rolled back.
	Undone
)

// String returns the lower camel case name used in notifications and the
// journal.
func (k StateKind) String() string {
	switch k {
	case NotRun:
		return "notRun"
	case Running:
		return "running"
	case Ran:
		return "ran"
	case Undoing:
		return "undoing"
	case Undone:
		return "undone"
	default:
		return "unknown"
	}
}

// ParseStateKind is the inverse of StateKind.String.
func ParseStateKind(s string) (StateKind, bool) {
	for k := NotRun; k <= Undone; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return NotRun, false
}

// StepState is the tagged state attached to one tracked step.
// Result and Undos are only meaningful when Kind is Ran.
type StepState struct {
	Kind   StateKind
	Result any
	Undos  []UndoFunc
}

// TrackedEntry pairs a step with its current state.
type TrackedEntry struct {
	Step  Step
	State StepState
}

func newEntry(st Step) *TrackedEntry {
	return &TrackedEntry{Step: st, State: StepState{Kind: NotRun}}
}

// StepStatus is one element of a state-change notification.
// It carries only the state kind, never the step result.
type StepStatus struct {
	ID    string
	State StateKind
}

func snapshot(entries []*TrackedEntry) []StepStatus {
	out := make([]StepStatus, len(entries))
	for i, e := range entries {
		out[i] = StepStatus{ID: e.Step.ID, State: e.State.Kind}
	}
	return out
}
