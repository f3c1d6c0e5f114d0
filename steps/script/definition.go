// Package script describes step sequences as YAML documents.
//
// A script lists steps in order; each step names an action from an
// action.Registry and passes it parameters:
//
//	name: signup-flow
//	steps:
//	  - id: Reset
//	    action: http
//	    with:
//	      method: POST
//	      url: http://localhost:8080/admin/reset
//	  - id: Signup
//	    action: http
//	    timeout: 5s
//	    with:
//	      method: POST
//	      url: http://localhost:8080/signup
//	      body: {name: alice}
//	      undo:
//	        method: DELETE
//	        url: http://localhost:8080/users/alice
//
// Editing a step's action, parameters or timeout makes the reconciler treat
// it as changed; reordering or renaming steps does the same for every step
// after the edit.
package script

import (
	"fmt"
	"time"
)

// Definition is a parsed script.
type Definition struct {
	Name  string     `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []StepSpec `json:"steps" yaml:"steps"`
}

// StepSpec describes one step of a script.
type StepSpec struct {
	ID      string         `json:"id" yaml:"id"`
	Action  string         `json:"action" yaml:"action"`
	With    map[string]any `json:"with,omitempty" yaml:"with,omitempty"`
	Timeout string         `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// IDs returns the step IDs in declaration order.
func (def Definition) IDs() []string {
	ids := make([]string, 0, len(def.Steps))
	for _, s := range def.Steps {
		ids = append(ids, s.ID)
	}
	return ids
}

// Validate checks IDs, action names and timeouts. An empty step list is
// valid: applying it rolls everything back.
func (def Definition) Validate() error {
	seen := make(map[string]struct{}, len(def.Steps))
	for i, s := range def.Steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("step %q: duplicate id", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Action == "" {
			return fmt.Errorf("step %q: action is required", s.ID)
		}
		if _, err := s.timeout(); err != nil {
			return fmt.Errorf("step %q: %w", s.ID, err)
		}
	}
	return nil
}

func (s StepSpec) timeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	return d, nil
}
