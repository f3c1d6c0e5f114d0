package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dshills/hotsteps/steps"
	"github.com/dshills/hotsteps/steps/reload"
)

var errQuit = errors.New("quit")

const promptHelp = `commands:
  goto <step>    undo or run steps until <step> is the last one run
  states         show every tracked step
  result <step>  show the stored result of a step
  quit           stop
`

// prompt reads commands from in until ctx is done, in is exhausted, or the
// user quits. It returns errQuit for an explicit quit.
func prompt(ctx context.Context, runner *reload.Runner, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleCommand(ctx, runner, line, out); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func handleCommand(ctx context.Context, runner *reload.Runner, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "goto", "g":
		if len(fields) != 2 {
			return errors.New("usage: goto <step>")
		}
		if err := navigate(ctx, runner, fields[1]); err != nil {
			return err
		}
		return showStates(ctx, runner, out)

	case "states", "s":
		return showStates(ctx, runner, out)

	case "result", "r":
		if len(fields) != 2 {
			return errors.New("usage: result <step>")
		}
		return showResult(ctx, runner, fields[1], out)

	case "help", "h", "?":
		fmt.Fprint(out, promptHelp)
		return nil

	case "quit", "q", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
}

// navigate rejects unknown IDs, which the engine silently ignores.
func navigate(ctx context.Context, runner *reload.Runner, stepID string) error {
	return runner.Do(ctx, "navigate", func(ctx context.Context, e *steps.Engine) error {
		for _, st := range e.States() {
			if st.ID == stepID {
				return e.NavigateTo(ctx, stepID)
			}
		}
		return fmt.Errorf("no step %q", stepID)
	})
}

func showStates(ctx context.Context, runner *reload.Runner, out io.Writer) error {
	var (
		states []steps.StepStatus
		cursor int
	)
	err := runner.Do(ctx, "states", func(_ context.Context, e *steps.Engine) error {
		states = e.States()
		cursor = e.Cursor()
		return nil
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\t#\tSTEP\tSTATE")
	for i, st := range states {
		marker := ""
		if i == cursor {
			marker = ">"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", marker, i, st.ID, st.State)
	}
	return tw.Flush()
}

func showResult(ctx context.Context, runner *reload.Runner, stepID string, out io.Writer) error {
	var (
		result any
		ok     bool
	)
	err := runner.Do(ctx, "result", func(_ context.Context, e *steps.Engine) error {
		result, ok = e.Result(stepID)
		return nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("step %q has no result", stepID)
	}
	fmt.Fprintf(out, "%s: %v\n", stepID, result)
	return nil
}
