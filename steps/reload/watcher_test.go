package reload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/hotsteps/steps"
)

// lineLoader builds one step per non-empty line of the file.
func lineLoader(c *counter) LoadFunc {
	return func(path string) (steps.Sequence, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "!" {
				return nil, errors.New("syntax error")
			}
			ids = append(ids, line)
		}
		return c.seq(ids...), nil
	}
}

func writeScript(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
}

// startWatcher runs a watcher on path and returns a channel of reload results.
func startWatcher(t *testing.T, path string, load LoadFunc) (*Runner, <-chan error) {
	t.Helper()
	runner, _ := newTestRunner(t)

	w := NewWatcher(path, load, runner, 20*time.Millisecond, quietLogger())
	reloads := make(chan error, 16)
	w.onReload = func(err error) { reloads <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("watcher returned error: %v", err)
		}
	})

	// Give the watcher time to register before the test writes.
	time.Sleep(50 * time.Millisecond)
	return runner, reloads
}

// waitReload waits for a reload whose outcome matches wantErr. Results
// from duplicate file events of an earlier write are skipped.
func waitReload(t *testing.T, reloads <-chan error, wantErr bool) error {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-reloads:
			if (err != nil) == wantErr {
				return err
			}
		case <-timeout:
			t.Fatalf("timed out waiting for reload (wantErr=%v)", wantErr)
			return nil
		}
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steps.txt")
	writeScript(t, path, "A", "B")

	c := newCounter()
	runner, reloads := startWatcher(t, path, lineLoader(c))

	seq, err := lineLoader(c)(path)
	if err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	if err := runner.Apply(context.Background(), seq); err != nil {
		t.Fatalf("initial Apply failed: %v", err)
	}

	writeScript(t, path, "A", "C")
	waitReload(t, reloads, false)

	if ran, undone := c.counts("A"); ran != 1 || undone != 0 {
		t.Errorf("expected A untouched, got ran=%d undone=%d", ran, undone)
	}
	if ran, undone := c.counts("B"); ran != 1 || undone != 1 {
		t.Errorf("expected B undone, got ran=%d undone=%d", ran, undone)
	}
	if ran, _ := c.counts("C"); ran != 1 {
		t.Errorf("expected C to run once, got %d", ran)
	}
}

func TestWatcher_LoadErrorKeepsSteps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steps.txt")
	writeScript(t, path, "A")

	c := newCounter()
	runner, reloads := startWatcher(t, path, lineLoader(c))
	if err := runner.Apply(context.Background(), c.seq("A")); err != nil {
		t.Fatalf("initial Apply failed: %v", err)
	}

	writeScript(t, path, "A", "!")
	if err := waitReload(t, reloads, true); err.Error() != "syntax error" {
		t.Fatalf("expected the load error, got %v", err)
	}

	states, err := runner.States(context.Background())
	if err != nil {
		t.Fatalf("States failed: %v", err)
	}
	if len(states) != 1 || states[0].State != steps.Ran {
		t.Errorf("expected previous step to stay ran, got %+v", states)
	}

	writeScript(t, path, "A", "B")
	waitReload(t, reloads, false)
	if ran, _ := c.counts("B"); ran != 1 {
		t.Errorf("expected B to run after the fix, got %d", ran)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steps.txt")
	writeScript(t, path, "A")

	c := newCounter()
	_, reloads := startWatcher(t, path, lineLoader(c))

	writeScript(t, filepath.Join(dir, "other.txt"), "X")

	select {
	case err := <-reloads:
		t.Fatalf("unexpected reload for another file: %v", err)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	runner, _ := newTestRunner(t)
	w := NewWatcher(filepath.Join(t.TempDir(), "nope", "steps.txt"), func(string) (steps.Sequence, error) {
		return nil, nil
	}, runner, 0, quietLogger())

	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error watching a missing directory")
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("expected default debounce, got %v", w.debounce)
	}
}
