package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// runStoreContract exercises the behavior every Store must share. runPrefix
// keeps runs of concurrent or repeated test invocations apart on shared
// databases.
func runStoreContract(t *testing.T, s Store, runPrefix string) {
	t.Helper()
	ctx := context.Background()
	runA, runB := runPrefix+"-a", runPrefix+"-b"
	_ = s.Clear(ctx, runA)
	_ = s.Clear(ctx, runB)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	transitions := []Transition{
		{RunID: runA, Seq: 1, Index: -1, State: "sequence_replaced", Cursor: -1, At: at},
		{RunID: runA, Seq: 2, Index: 0, StepID: "Login", State: "running", Cursor: -1, At: at},
		{RunID: runB, Seq: 1, Index: -1, State: "sequence_replaced", Cursor: -1, At: at},
		{RunID: runA, Seq: 3, Index: 0, StepID: "Login", State: "ran", Cursor: 0, At: at.Add(time.Second)},
	}
	for _, tr := range transitions {
		if err := s.AppendTransition(ctx, tr); err != nil {
			t.Fatalf("AppendTransition failed: %v", err)
		}
	}

	t.Run("history is ordered by seq", func(t *testing.T) {
		history, err := s.History(ctx, runA)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 transitions, got %d", len(history))
		}
		for i, tr := range history {
			if tr.Seq != int64(i+1) {
				t.Errorf("transition %d has seq %d", i, tr.Seq)
			}
		}
		last := history[2]
		if last.StepID != "Login" || last.State != "ran" || last.Cursor != 0 || last.Index != 0 {
			t.Errorf("unexpected transition: %+v", last)
		}
		if !last.At.Equal(at.Add(time.Second)) {
			t.Errorf("expected time %v, got %v", at.Add(time.Second), last.At)
		}
	})

	t.Run("latest", func(t *testing.T) {
		latest, err := s.Latest(ctx, runA)
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if latest.Seq != 3 {
			t.Errorf("expected seq 3, got %d", latest.Seq)
		}
	})

	t.Run("runs in order of first appearance", func(t *testing.T) {
		runs, err := s.Runs(ctx)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		posA, posB := -1, -1
		for i, id := range runs {
			switch id {
			case runA:
				posA = i
			case runB:
				posB = i
			}
		}
		if posA < 0 || posB < 0 || posA > posB {
			t.Errorf("expected %s before %s in %v", runA, runB, runs)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		if _, err := s.History(ctx, runPrefix+"-missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound from History, got %v", err)
		}
		if _, err := s.Latest(ctx, runPrefix+"-missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound from Latest, got %v", err)
		}
	})

	t.Run("clear", func(t *testing.T) {
		if err := s.Clear(ctx, runB); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if _, err := s.History(ctx, runB); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected cleared run to be gone, got %v", err)
		}
		if _, err := s.History(ctx, runA); err != nil {
			t.Errorf("expected other run to survive, got %v", err)
		}
	})

	t.Run("closed store", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("expected Close to be idempotent, got %v", err)
		}
		if err := s.AppendTransition(ctx, Transition{RunID: runA, Seq: 4}); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
		if _, err := s.Runs(ctx); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}
