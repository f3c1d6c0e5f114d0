// Package action provides named, reusable step bodies.
//
// Actions let step sequences be described as data (see package script): a
// step names an action and passes it parameters, and the action does the
// work. Every step built from an action carries the source key
// "action:<name>" and its parameters, so the reconciler treats a step as
// changed exactly when its action or its parameters change.
package action

import (
	"context"

	"github.com/dshills/hotsteps/steps"
)

// Action is a named step body.
//
// Implementations should:
//   - Validate Params and return descriptive errors
//   - Respect context cancellation
//   - Register an undo action for every side effect they want reverted
//
// Example implementation:
//
//	type CreateUser struct{ db *sql.DB }
//
//	func (c *CreateUser) Name() string { return "create_user" }
//
//	func (c *CreateUser) Do(ctx context.Context, call action.Call) (any, error) {
//	    name, ok := call.Params["name"].(string)
//	    if !ok {
//	        return nil, errors.New("name parameter required")
//	    }
//	    id, err := insertUser(ctx, c.db, name)
//	    if err != nil {
//	        return nil, err
//	    }
//	    call.Undo.RegisterUndo(func(ctx context.Context) error {
//	        return deleteUser(ctx, c.db, id)
//	    })
//	    return id, nil
//	}
type Action interface {
	// Name returns the identifier scripts use to refer to the action.
	// Names are lowercase with underscores.
	Name() string

	// Do performs the action for one step invocation.
	Do(ctx context.Context, call Call) (any, error)
}

// Call carries everything an action receives for one step invocation.
type Call struct {
	// StepID is the ID of the step being run.
	StepID string

	// Input is the result of the previous step, nil for the first step.
	Input any

	// Params are the step's parameters. Never nil.
	Params map[string]any

	// Undo registers undo actions for this invocation.
	Undo steps.UndoRegistrar
}

// SourceKey returns the comparison key of steps built from the action
// called name.
func SourceKey(name string) string {
	return "action:" + name
}

// Operation adapts a to a step operation bound to stepID and params.
func Operation(a Action, stepID string, params map[string]any) steps.Operation {
	if params == nil {
		params = map[string]any{}
	}
	return func(ctx context.Context, input any, undo steps.UndoRegistrar) (any, error) {
		return a.Do(ctx, Call{StepID: stepID, Input: input, Params: params, Undo: undo})
	}
}

// Step builds a step that runs a with params.
//
// Example:
//
//	login := action.Step("Login", httpAction, map[string]any{
//	    "method": "POST",
//	    "url":    "http://localhost:8080/login",
//	})
func Step(id string, a Action, params map[string]any) steps.Step {
	return steps.Step{
		ID:     id,
		Do:     Operation(a, id, params),
		Source: SourceKey(a.Name()),
		Params: params,
	}
}
