package steps

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStepTimeout is returned by operations wrapped with WithTimeout when
// they do not finish in time.
var ErrStepTimeout = errors.New("step timed out")

// WithTimeout wraps op so that it fails with ErrStepTimeout when it does not
// return within d. A non-positive d returns op unchanged.
//
// The engine has no cancellation of its own; this decorator races the
// operation against a deadline inside the step. The operation receives a
// context that is cancelled at the deadline. If it ignores that context it
// keeps running in the background and anything it registers afterwards is
// dropped.
//
// Every wrapped operation shares the wrapper's symbol name, so steps using
// WithTimeout must set Step.Source.
//
// Example:
//
//	step := steps.Step{ID: "Fetch", Do: steps.WithTimeout(fetch, 10*time.Second), Source: "fetch"}
func WithTimeout(op Operation, d time.Duration) Operation {
	if d <= 0 || op == nil {
		return op
	}

	type outcome struct {
		result any
		err    error
	}

	return func(ctx context.Context, input any, undo UndoRegistrar) (any, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan outcome, 1)
		go func() {
			result, err := op(timeoutCtx, input, undo)
			done <- outcome{result: result, err: err}
		}()

		select {
		case o := <-done:
			return o.result, o.err
		case <-timeoutCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w after %s", ErrStepTimeout, d)
		}
	}
}

func stepErrorCode(err error) string {
	if errors.Is(err, ErrStepTimeout) {
		return CodeStepTimeout
	}
	return CodeStepFailed
}
