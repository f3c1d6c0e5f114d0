package action

import (
	"context"
	"sync"
)

// MockAction is a test implementation of Action.
//
// It provides:
//   - Configurable name and response sequence
//   - Call and undo history
//   - Error injection
//
// Example usage:
//
//	mock := &action.MockAction{
//	    ActionName: "create_user",
//	    Responses:  []any{"user-1", "user-2"},
//	    WithUndo:   true,
//	}
//	registry := action.NewRegistry(mock)
type MockAction struct {
	// ActionName is returned by Name().
	ActionName string

	// Responses are returned in order; the last one repeats once all are
	// consumed. With no responses Do returns its input.
	Responses []any

	// Err, if set, is returned by Do instead of a response.
	Err error

	// WithUndo makes every successful call register an undo action.
	WithUndo bool

	// UndoErr, if set, is returned by the registered undo actions.
	UndoErr error

	// Calls records every Do invocation.
	Calls []Call

	// Undone records the step IDs of executed undo actions, in order.
	Undone []string

	mu        sync.Mutex
	callIndex int
}

// Name implements Action.
func (m *MockAction) Name() string {
	return m.ActionName
}

// Do implements Action.
func (m *MockAction) Do(ctx context.Context, call Call) (any, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, call)
	if m.Err != nil {
		return nil, m.Err
	}

	if m.WithUndo {
		stepID := call.StepID
		call.Undo.RegisterUndo(func(context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.Undone = append(m.Undone, stepID)
			return m.UndoErr
		})
	}

	if len(m.Responses) == 0 {
		return call.Input, nil
	}
	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call and undo history and rewinds the responses.
func (m *MockAction) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.Undone = nil
	m.callIndex = 0
}

// CallCount returns the number of Do invocations.
func (m *MockAction) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}

// UndoCount returns the number of executed undo actions.
func (m *MockAction) UndoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Undone)
}
