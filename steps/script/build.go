package script

import (
	"fmt"

	"github.com/dshills/hotsteps/steps"
	"github.com/dshills/hotsteps/steps/action"
)

// stepParams is the compared payload of a scripted step.
type stepParams struct {
	With    map[string]any
	Timeout string
}

// Build turns def into a Sequence whose steps run actions from registry.
//
// Building the same definition twice yields sequences the reconciler
// considers identical, so re-reading an unchanged file runs nothing.
func Build(def Definition, registry *action.Registry) (steps.Sequence, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	seq := make(steps.Sequence, 0, len(def.Steps))
	for _, spec := range def.Steps {
		a, err := registry.Lookup(spec.Action)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", spec.ID, err)
		}
		timeout, _ := spec.timeout()

		st := action.Step(spec.ID, a, spec.With)
		st.Do = steps.WithTimeout(st.Do, timeout)
		st.Params = stepParams{With: spec.With, Timeout: spec.Timeout}
		seq = append(seq, st)
	}

	if err := steps.ValidateSequence(seq); err != nil {
		return nil, err
	}
	return seq, nil
}
