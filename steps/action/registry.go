package action

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownAction is returned by Lookup for unregistered names.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDuplicateAction is returned when a name is registered twice.
	ErrDuplicateAction = errors.New("action already registered")
)

// Registry maps action names to actions. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates a registry holding actions. It panics on empty or
// duplicate names, which are programming errors.
func NewRegistry(actions ...Action) *Registry {
	r := &Registry{actions: make(map[string]Action)}
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a.
func (r *Registry) Register(a Action) error {
	if a == nil || a.Name() == "" {
		return errors.New("action must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[a.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, a.Name())
	}
	r.actions[a.Name()] = a
	return nil
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
