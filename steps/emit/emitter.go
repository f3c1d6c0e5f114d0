package emit

// Emitter receives observability events from an engine.
//
// Emitters are pluggable backends:
//   - Logging: LogEmitter
//   - In-memory history: BufferedEmitter
//   - Distributed tracing: OTelEmitter
//   - Nothing at all: NullEmitter
//
// The engine calls Emit synchronously on every transition, so
// implementations should return quickly and must not call back into the
// engine. Emit should not panic; failures are handled internally.
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	Emit(event Event)
}

// Multi fans events out to several emitters in order.
type Multi []Emitter

// Emit forwards the event to every non-nil emitter.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
