package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are grouped by run ID and kept in emission order. It is safe for
// concurrent use and is mostly useful in tests and debugging sessions.
//
// Warning: all events are retained until Clear is called.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	engine, _ := steps.New(steps.WithRunID("run-001"), steps.WithEmitter(emitter))
//	_ = engine.Apply(ctx, seq)
//
//	undone := emitter.GetHistoryWithFilter("run-001", emit.HistoryFilter{Msg: "step_undone"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
}

// HistoryFilter specifies criteria for filtering buffered events.
//
// All fields are optional and combined with AND logic.
type HistoryFilter struct {
	StepID   string // Filter by step ID (empty = no filter)
	Msg      string // Filter by event name (empty = no filter)
	MinIndex *int   // Minimum step index (nil = no filter)
	MaxIndex *int   // Maximum step index (nil = no filter)
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// GetHistory returns a copy of all events for runID in emission order.
// It returns an empty slice for unknown runs.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	return b.GetHistoryWithFilter(runID, HistoryFilter{})
}

// GetHistoryWithFilter returns a copy of the events for runID that match
// filter.
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Event, 0, len(b.events[runID]))
	for _, event := range b.events[runID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Messages returns the event names for runID in emission order.
func (b *BufferedEmitter) Messages(runID string) []string {
	history := b.GetHistory(runID)
	msgs := make([]string, len(history))
	for i, e := range history {
		msgs[i] = e.Msg
	}
	return msgs
}

func (f HistoryFilter) matches(event Event) bool {
	if f.StepID != "" && event.StepID != f.StepID {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinIndex != nil && event.Index < *f.MinIndex {
		return false
	}
	if f.MaxIndex != nil && event.Index > *f.MaxIndex {
		return false
	}
	return true
}

// Clear removes stored events for runID, or every run when runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}
