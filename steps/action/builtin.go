package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cast"
)

// Builtin returns a registry with the value, log, sleep and http actions.
// A nil logger uses slog.Default(); a nil client uses a default client.
func Builtin(logger *slog.Logger, client *http.Client) *Registry {
	return NewRegistry(
		ValueAction{},
		NewLogAction(logger),
		SleepAction{},
		NewHTTPAction(client),
	)
}

// ValueAction returns params["value"], or its input unchanged when no value
// is given. It has no side effects and registers no undo.
//
// Params:
//   - value: any (optional)
type ValueAction struct{}

// Name implements Action.
func (ValueAction) Name() string { return "value" }

// Do implements Action.
func (ValueAction) Do(_ context.Context, call Call) (any, error) {
	if v, ok := call.Params["value"]; ok {
		return v, nil
	}
	return call.Input, nil
}

// LogAction writes a message when the step runs and another when it is
// undone, then passes its input through. Handy for tracing a script.
//
// Params:
//   - message: string (required)
//   - level: debug, info (default), warn or error
type LogAction struct {
	logger *slog.Logger
}

// NewLogAction creates a LogAction. A nil logger uses slog.Default().
func NewLogAction(logger *slog.Logger) *LogAction {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAction{logger: logger}
}

// Name implements Action.
func (l *LogAction) Name() string { return "log" }

// Do implements Action.
func (l *LogAction) Do(ctx context.Context, call Call) (any, error) {
	message, err := cast.ToStringE(call.Params["message"])
	if err != nil || message == "" {
		return nil, fmt.Errorf("message parameter required (string)")
	}

	var level slog.Level
	if raw, ok := call.Params["level"]; ok {
		if err := level.UnmarshalText([]byte(cast.ToString(raw))); err != nil {
			return nil, fmt.Errorf("invalid level %v: %w", raw, err)
		}
	}

	l.logger.Log(ctx, level, message, "step_id", call.StepID, "input", call.Input)
	call.Undo.RegisterUndo(func(ctx context.Context) error {
		l.logger.Log(ctx, level, "undo: "+message, "step_id", call.StepID)
		return nil
	})
	return call.Input, nil
}

// SleepAction waits for a duration, then passes its input through. It
// returns the context error if ctx is cancelled first.
//
// Params:
//   - duration: Go duration string or milliseconds (required)
type SleepAction struct{}

// Name implements Action.
func (SleepAction) Name() string { return "sleep" }

// Do implements Action.
func (SleepAction) Do(ctx context.Context, call Call) (any, error) {
	raw, ok := call.Params["duration"]
	if !ok {
		return nil, fmt.Errorf("duration parameter required")
	}
	d, err := toDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %v: %w", raw, err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return call.Input, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// toDuration parses Go duration strings and treats bare numbers as
// milliseconds.
func toDuration(raw any) (time.Duration, error) {
	if s, ok := raw.(string); ok {
		if ms, err := cast.ToInt64E(s); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		return time.ParseDuration(s)
	}
	ms, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
