package action

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/dshills/hotsteps/steps"
)

func newEngine(t *testing.T) *steps.Engine {
	t.Helper()
	engine, err := steps.New(steps.WithRunID("action-test"), steps.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return engine
}

func TestStep(t *testing.T) {
	mock := &MockAction{ActionName: "create", Responses: []any{"user-1"}}
	params := map[string]any{"name": "alice"}

	st := Step("Create", mock, params)
	if st.ID != "Create" || st.Source != "action:create" {
		t.Errorf("unexpected step: id=%q source=%q", st.ID, st.Source)
	}

	t.Run("rebuilt steps compare equal", func(t *testing.T) {
		again := Step("Create", mock, map[string]any{"name": "alice"})
		if !steps.StepsEqual(st, again) {
			t.Error("expected steps with the same action and params to be equal")
		}
	})

	t.Run("param edits are changes", func(t *testing.T) {
		edited := Step("Create", mock, map[string]any{"name": "bob"})
		if steps.StepsEqual(st, edited) {
			t.Error("expected a param edit to be detected")
		}
	})

	t.Run("operation forwards the call", func(t *testing.T) {
		engine := newEngine(t)
		if err := engine.Apply(context.Background(), steps.Seq(st)); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if mock.CallCount() != 1 {
			t.Fatalf("expected 1 call, got %d", mock.CallCount())
		}
		call := mock.Calls[0]
		if call.StepID != "Create" || !reflect.DeepEqual(call.Params, params) || call.Undo == nil {
			t.Errorf("unexpected call: %+v", call)
		}
		if got, _ := engine.Result("Create"); got != "user-1" {
			t.Errorf("expected result user-1, got %v", got)
		}
	})

	t.Run("nil params become empty", func(t *testing.T) {
		var seen map[string]any
		probe := &funcAction{name: "probe", fn: func(_ context.Context, call Call) (any, error) {
			seen = call.Params
			return nil, nil
		}}
		if _, err := Operation(probe, "P", nil)(context.Background(), nil, nil); err != nil {
			t.Fatalf("operation failed: %v", err)
		}
		if seen == nil {
			t.Error("expected non-nil params")
		}
	})
}

type funcAction struct {
	name string
	fn   func(context.Context, Call) (any, error)
}

func (f *funcAction) Name() string { return f.name }
func (f *funcAction) Do(ctx context.Context, call Call) (any, error) { return f.fn(ctx, call) }

func TestRegistry(t *testing.T) {
	registry := NewRegistry(ValueAction{}, SleepAction{})

	if got := registry.Names(); !reflect.DeepEqual(got, []string{"sleep", "value"}) {
		t.Errorf("unexpected names: %v", got)
	}

	a, err := registry.Lookup("value")
	if err != nil || a.Name() != "value" {
		t.Fatalf("Lookup(value) = %v, %v", a, err)
	}

	if _, err := registry.Lookup("missing"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	if err := registry.Register(ValueAction{}); !errors.Is(err, ErrDuplicateAction) {
		t.Errorf("expected ErrDuplicateAction, got %v", err)
	}
	if err := registry.Register(&MockAction{}); err == nil {
		t.Error("expected error for unnamed action")
	}

	t.Run("builtin", func(t *testing.T) {
		names := Builtin(nil, nil).Names()
		if !reflect.DeepEqual(names, []string{"http", "log", "sleep", "value"}) {
			t.Errorf("unexpected builtin names: %v", names)
		}
	})
}
