package emit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by turning step transitions into
// OpenTelemetry spans.
//
// A step_running event opens a "step.do" span that the matching step_ran
// (or step_failed) event closes; step_undoing and step_undone bracket a
// "step.undo" span the same way. Every other event becomes an instant span
// named after the event.
//
// Span attributes:
//   - hotsteps.run_id, hotsteps.step_id, hotsteps.index
//   - every Meta entry as hotsteps.<key>
//
// Usage:
//
//	tracer := otel.Tracer("hotsteps")
//	engine, err := steps.New(steps.WithEmitter(emit.NewOTelEmitter(tracer)))
type OTelEmitter struct {
	tracer trace.Tracer

	mu   sync.Mutex
	open map[spanKey]trace.Span
}

type spanKey struct {
	runID string
	index int
}

// NewOTelEmitter creates an emitter that records spans with tracer.
// A nil tracer uses the global provider.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	if tracer == nil {
		tracer = otel.Tracer("hotsteps")
	}
	return &OTelEmitter{
		tracer: tracer,
		open:   make(map[spanKey]trace.Span),
	}
}

// Emit records the event as span activity.
func (o *OTelEmitter) Emit(event Event) {
	key := spanKey{runID: event.RunID, index: event.Index}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Msg {
	case MsgStepRunning, MsgStepUndoing:
		name := "step.do"
		if event.Msg == MsgStepUndoing {
			name = "step.undo"
		}
		if prev, ok := o.open[key]; ok {
			prev.End()
		}
		_, span := o.tracer.Start(context.Background(), name)
		o.addAttributes(span, event)
		o.open[key] = span

	case MsgStepRan, MsgStepUndone, MsgStepFailed:
		span, ok := o.open[key]
		if !ok {
			_, span = o.tracer.Start(context.Background(), event.Msg)
		}
		delete(o.open, key)
		o.addAttributes(span, event)
		o.setStatus(span, event)
		span.End()

	default:
		_, span := o.tracer.Start(context.Background(), event.Msg)
		o.addAttributes(span, event)
		o.setStatus(span, event)
		span.End()
	}
}

// Flush ends spans left open by failed operations and forces the global
// tracer provider to export.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	o.mu.Lock()
	for key, span := range o.open {
		span.SetStatus(codes.Error, "span left open")
		span.End()
		delete(o.open, key)
	}
	o.mu.Unlock()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) setStatus(span trace.Span, event Event) {
	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(fmt.Errorf("%s", msg))
	}
}

func (o *OTelEmitter) addAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("hotsteps.run_id", event.RunID),
		attribute.Int("hotsteps.index", event.Index),
		attribute.String("hotsteps.event", event.Msg),
	)
	if event.StepID != "" {
		span.SetAttributes(attribute.String("hotsteps.step_id", event.StepID))
	}

	for key, value := range event.Meta {
		attrKey := "hotsteps." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, v.Milliseconds()))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
