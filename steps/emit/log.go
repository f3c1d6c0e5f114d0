package emit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
)

// LogEmitter implements Emitter by writing one structured log record per
// event through log/slog.
//
// Supports two output modes:
//   - Text mode (default): slog text handler, key=value pairs
//   - JSON mode: slog JSON handler, one object per line
//
// Example text output:
//
//	time=... level=INFO msg=step_ran run_id=run-001 index=0 step_id=Setup state=ran cursor=-1
//
// Usage:
//
//	// Text output to stderr
//	emitter := emit.NewLogEmitter(os.Stderr, false)
//
//	// Reuse an application logger
//	emitter := emit.NewSlogEmitter(logger)
type LogEmitter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogEmitter creates a LogEmitter writing to writer.
// A nil writer means os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	var h slog.Handler
	if jsonMode {
		h = slog.NewJSONHandler(writer, nil)
	} else {
		h = slog.NewTextHandler(writer, nil)
	}
	return &LogEmitter{logger: slog.New(h), level: slog.LevelInfo}
}

// NewSlogEmitter creates a LogEmitter on top of an existing logger.
// Events are logged at debug level so they stay quiet unless asked for.
func NewSlogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger, level: slog.LevelDebug}
}

// Emit writes the event. step_failed events are logged at error level.
func (l *LogEmitter) Emit(event Event) {
	level := l.level
	if _, failed := event.Meta["error"]; failed {
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("run_id", event.RunID),
		slog.Int("index", event.Index),
	}
	if event.StepID != "" {
		attrs = append(attrs, slog.String("step_id", event.StepID))
	}

	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, event.Meta[k]))
	}

	l.logger.LogAttrs(context.Background(), level, event.Msg, attrs...)
}
