package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/hotsteps/internal/config"
	"github.com/dshills/hotsteps/steps"
	"github.com/dshills/hotsteps/steps/emit"
	"github.com/dshills/hotsteps/steps/store"
)

// openJournal returns the configured journal, or nil for the "none" driver.
func openJournal(cfg config.JournalConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.JournalNone:
		return nil, nil
	case config.JournalMemory, "":
		return store.NewMemStore(), nil
	case config.JournalSQLite:
		s, err := store.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.JournalMySQL:
		s, err := store.NewMySQLStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

// engineDeps are the optional collaborators wired into the engine.
type engineDeps struct {
	journal  store.Store
	registry prometheus.Registerer
	spans    *emit.OTelEmitter
}

func newEngine(cfg *config.Config, logger *slog.Logger, deps engineDeps) (*steps.Engine, error) {
	emitters := emit.Multi{emit.NewSlogEmitter(logger)}
	if deps.spans != nil {
		emitters = append(emitters, deps.spans)
	}

	opts := []steps.Option{
		steps.WithLogger(logger),
		steps.WithEmitter(emitters),
		steps.WithOverlapPolicy(cfg.Engine.Overlap()),
		steps.WithComparator(steps.Comparator{MaxDepth: cfg.Engine.MaxCompareDepth}),
	}
	if cfg.Engine.RunID != "" {
		opts = append(opts, steps.WithRunID(cfg.Engine.RunID))
	}
	if deps.journal != nil {
		opts = append(opts, steps.WithStore(deps.journal))
	}
	if deps.registry != nil {
		opts = append(opts, steps.WithMetrics(steps.NewPrometheusMetrics(deps.registry)))
	}
	return steps.New(opts...)
}

// newTracerProvider returns a provider whose finished spans are logged at
// debug level, or nil when tracing is disabled.
func newTracerProvider(cfg config.TracingConfig, logger *slog.Logger) *sdktrace.TracerProvider {
	if !cfg.Enabled {
		return nil
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&spanLogger{
		logger: logger.With("component", "tracing", "service", cfg.ServiceName),
	}))
}

// spanLogger is a span processor that writes each ended span to slog.
type spanLogger struct {
	logger *slog.Logger
}

func (p *spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *spanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := []any{
		"span", s.Name(),
		"trace_id", s.SpanContext().TraceID().String(),
		"duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
		"status", s.Status().Code.String(),
	}
	for _, kv := range s.Attributes() {
		attrs = append(attrs, string(kv.Key), kv.Value.Emit())
	}
	p.logger.Debug("span ended", attrs...)
}

func (p *spanLogger) Shutdown(context.Context) error { return nil }
func (p *spanLogger) ForceFlush(context.Context) error { return nil }
