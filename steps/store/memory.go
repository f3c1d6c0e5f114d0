package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory implementation of Store.
//
// It is safe for concurrent use. Data is lost when the process exits.
//
// Example:
//
//	journal := store.NewMemStore()
//	engine, err := steps.New(steps.WithStore(journal))
type MemStore struct {
	mu     sync.RWMutex
	runs   map[string][]Transition
	order  []string
	closed bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs: make(map[string][]Transition),
	}
}

// AppendTransition records t.
func (m *MemStore) AppendTransition(_ context.Context, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.runs[t.RunID]; !ok {
		m.order = append(m.order, t.RunID)
	}
	m.runs[t.RunID] = append(m.runs[t.RunID], t)
	return nil
}

// History returns a copy of the transitions of runID ordered by Seq.
func (m *MemStore) History(_ context.Context, runID string) ([]Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	recorded := m.runs[runID]
	if len(recorded) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Transition, len(recorded))
	copy(out, recorded)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Latest returns the transition with the highest Seq.
func (m *MemStore) Latest(ctx context.Context, runID string) (Transition, error) {
	history, err := m.History(ctx, runID)
	if err != nil {
		return Transition{}, err
	}
	return history[len(history)-1], nil
}

// Runs lists run IDs in order of first appearance.
func (m *MemStore) Runs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out, nil
}

// Clear removes the journal of runID.
func (m *MemStore) Clear(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.runs, runID)
	for i, id := range m.order {
		if id == runID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close marks the store closed. It is idempotent.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
