package script

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/hotsteps/steps"
	"github.com/dshills/hotsteps/steps/action"
)

const signupScript = `
name: signup
steps:
  - id: Reset
    action: record
  - id: Signup
    action: record
    timeout: 2s
    with:
      user: alice
      tags: [a, b]
  - id: Verify
    action: record
`

func TestParseDefinitionYAML(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte(signupScript))
	if err != nil {
		t.Fatalf("ParseDefinitionYAML failed: %v", err)
	}
	if def.Name != "signup" {
		t.Errorf("expected name signup, got %q", def.Name)
	}
	if got := def.IDs(); !reflect.DeepEqual(got, []string{"Reset", "Signup", "Verify"}) {
		t.Errorf("unexpected ids: %v", got)
	}
	signup := def.Steps[1]
	if signup.Timeout != "2s" || signup.With["user"] != "alice" {
		t.Errorf("unexpected step: %+v", signup)
	}
}

func TestParseDefinitionYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"empty", "  \n", "payload is empty"},
		{"malformed", "steps: [", "decode definition"},
		{"unknown field", "steps:\n  - id: A\n    action: x\n    retries: 3\n", "decode definition"},
		{"missing id", "steps:\n  - action: x\n", "id is required"},
		{"missing action", "steps:\n  - id: A\n", "action is required"},
		{"duplicate id", "steps:\n  - {id: A, action: x}\n  - {id: A, action: y}\n", "duplicate id"},
		{"bad timeout", "steps:\n  - {id: A, action: x, timeout: soon}\n", "invalid timeout"},
		{"negative timeout", "steps:\n  - {id: A, action: x, timeout: -1s}\n", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinitionYAML([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), "script: ") || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected script error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestParseDefinitionYAML_EmptyStepList(t *testing.T) {
	def, err := ParseDefinitionYAML([]byte("steps: []\n"))
	if err != nil {
		t.Fatalf("expected empty step list to be valid, got %v", err)
	}
	if len(def.Steps) != 0 {
		t.Errorf("expected no steps, got %d", len(def.Steps))
	}
}

func TestBuild(t *testing.T) {
	mock := &action.MockAction{ActionName: "record"}
	registry := action.NewRegistry(mock)

	def, err := ParseDefinitionYAML([]byte(signupScript))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	first, err := Build(def, registry)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := first.IDs(); !reflect.DeepEqual(got, []string{"Reset", "Signup", "Verify"}) {
		t.Errorf("unexpected ids: %v", got)
	}
	for _, st := range first {
		if st.Source != "action:record" {
			t.Errorf("step %s: unexpected source %q", st.ID, st.Source)
		}
	}

	t.Run("rebuilding yields equal steps", func(t *testing.T) {
		again, _ := ParseDefinitionYAML([]byte(signupScript))
		second, err := Build(again, registry)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		for i := range first {
			if !steps.StepsEqual(first[i], second[i]) {
				t.Errorf("step %s: expected equal after rebuild", first[i].ID)
			}
		}
	})

	t.Run("param and timeout edits are changes", func(t *testing.T) {
		edited := strings.Replace(signupScript, "user: alice", "user: bob", 1)
		edited = strings.Replace(edited, "timeout: 2s", "timeout: 3s", 1)
		def, _ := ParseDefinitionYAML([]byte(edited))
		seq, err := Build(def, registry)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if !steps.StepsEqual(first[0], seq[0]) || steps.StepsEqual(first[1], seq[1]) {
			t.Error("expected only Signup to change")
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		def := Definition{Steps: []StepSpec{{ID: "A", Action: "missing"}}}
		if _, err := Build(def, registry); !errors.Is(err, action.ErrUnknownAction) {
			t.Errorf("expected ErrUnknownAction, got %v", err)
		}
	})

	t.Run("invalid definition", func(t *testing.T) {
		def := Definition{Steps: []StepSpec{{ID: "A", Action: "record"}, {ID: "A", Action: "record"}}}
		if _, err := Build(def, registry); err == nil {
			t.Error("expected error for duplicate ids")
		}
	})
}

func TestBuild_Timeout(t *testing.T) {
	registry := action.NewRegistry(action.SleepAction{})
	def := Definition{Steps: []StepSpec{{
		ID:      "Wait",
		Action:  "sleep",
		Timeout: "10ms",
		With:    map[string]any{"duration": "1h"},
	}}}

	seq, err := Build(def, registry)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	engine, _ := steps.New(steps.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	err = engine.Apply(context.Background(), seq)
	if !errors.Is(err, steps.ErrStepTimeout) {
		t.Fatalf("expected ErrStepTimeout, got %v", err)
	}
}

func TestLoadFile_Reload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "steps.yaml")
	mock := &action.MockAction{ActionName: "record", WithUndo: true}
	registry := action.NewRegistry(mock)
	engine, _ := steps.New(steps.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	apply := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		seq, err := LoadFile(path, registry)
		if err != nil {
			t.Fatalf("LoadFile failed: %v", err)
		}
		if err := engine.Apply(ctx, seq); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}

	apply(signupScript)
	if mock.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.CallCount())
	}

	mock.Reset()
	apply(signupScript)
	if mock.CallCount() != 0 || mock.UndoCount() != 0 {
		t.Errorf("expected reload of unchanged file to do nothing, got %d calls %d undos",
			mock.CallCount(), mock.UndoCount())
	}

	mock.Reset()
	apply(strings.Replace(signupScript, "user: alice", "user: carol", 1))
	if !reflect.DeepEqual(mock.Undone, []string{"Verify", "Signup"}) {
		t.Errorf("expected Verify and Signup to be undone, got %v", mock.Undone)
	}
	if mock.CallCount() != 1 || mock.Calls[0].StepID != "Signup" {
		t.Errorf("expected only Signup to rerun, got %d calls", mock.CallCount())
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), registry)
		if err == nil || !strings.HasPrefix(err.Error(), "script: read ") {
			t.Errorf("expected read error, got %v", err)
		}
	})
}

func TestLoadDefinitionReader(t *testing.T) {
	def, err := LoadDefinitionReader(strings.NewReader(`{"steps": [{"id": "A", "action": "value"}]}`))
	if err != nil {
		t.Fatalf("LoadDefinitionReader failed: %v", err)
	}
	if len(def.Steps) != 1 || def.Steps[0].Action != "value" {
		t.Errorf("unexpected definition: %+v", def)
	}
}
