package steps

import (
	"context"
	"reflect"
	"runtime"
	"sync"
)

// Operation is the body of a step.
//
// It receives the result of the previous step (nil for the first step) and
// an UndoRegistrar scoped to this single invocation. The returned value is
// handed to the next step as its input.
//
// The engine never cancels ctx. Operations that need a deadline must enforce
// it themselves, for example by wrapping the operation with WithTimeout.
type Operation func(ctx context.Context, input any, undo UndoRegistrar) (any, error)

// UndoFunc reverts part of the work done by a step.
type UndoFunc func(ctx context.Context) error

// UndoRegistrar collects undo actions while a step's Operation is running.
//
// RegisterUndo may be called any number of times, including zero. Undo
// actions run in reverse registration order when the step is rewound.
type UndoRegistrar interface {
	RegisterUndo(fn UndoFunc)
}

// Step is an immutable step definition.
//
// Steps are compared structurally by the reconciler: two steps are the same
// when their IDs, operation sources and params are equal, even if Do is a
// freshly created closure.
//
// Example:
//
//	login := steps.Step{
//	    ID: "Login",
//	    Do: func(ctx context.Context, in any, undo steps.UndoRegistrar) (any, error) {
//	        session, err := openSession(ctx)
//	        if err != nil {
//	            return nil, err
//	        }
//	        undo.RegisterUndo(func(ctx context.Context) error { return session.Close() })
//	        return session, nil
//	    },
//	}
type Step struct {
	// ID names the step. IDs should be unique within one Sequence;
	// NavigateTo picks the first match.
	ID string

	// Do is the step body.
	Do Operation

	// Source is the comparison key for Do. When empty, the compiled symbol
	// name of Do is used, which is identical for every closure created from
	// the same function literal.
	Source string

	// Params is an optional payload compared structurally. Use it to
	// distinguish steps that share a Do literal but capture different data.
	Params any
}

// Sequence is the full ordered list of steps handled by one engine.
type Sequence []Step

// Seq builds a Sequence from the given steps.
func Seq(steps ...Step) Sequence {
	return Sequence(steps)
}

// IDs returns the step IDs in order.
func (s Sequence) IDs() []string {
	ids := make([]string, len(s))
	for i, st := range s {
		ids[i] = st.ID
	}
	return ids
}

// Index returns the position of the step with the given ID, or -1.
func (s Sequence) Index(id string) int {
	for i, st := range s {
		if st.ID == id {
			return i
		}
	}
	return -1
}

// SourceKey returns the serialized comparison key of the step's operation.
func (s Step) SourceKey() string {
	if s.Source != "" {
		return s.Source
	}
	return FuncSource(s.Do)
}

// FuncSource returns the compiled symbol name of fn, or "" for nil and
// non-function values.
func FuncSource(fn any) string {
	if fn == nil {
		return ""
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return f.Name()
}

// undoList is the UndoRegistrar handed to one Operation invocation.
// It is sealed once the operation returns; later registrations are dropped
// and reported through onLate.
type undoList struct {
	mu     sync.Mutex
	fns    []UndoFunc
	sealed bool
	onLate func()
}

func (u *undoList) RegisterUndo(fn UndoFunc) {
	if fn == nil {
		return
	}
	u.mu.Lock()
	if u.sealed {
		u.mu.Unlock()
		if u.onLate != nil {
			u.onLate()
		}
		return
	}
	u.fns = append(u.fns, fn)
	u.mu.Unlock()
}

func (u *undoList) seal() []UndoFunc {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sealed = true
	return u.fns
}
