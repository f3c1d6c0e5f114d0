package steps

import (
	"log/slog"

	"github.com/dshills/hotsteps/steps/emit"
	"github.com/dshills/hotsteps/steps/store"
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := steps.New(
//	    steps.WithRunID("moodle"),
//	    steps.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	    steps.WithStore(store.NewMemStore()),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	runID      string
	emitter    emit.Emitter
	store      store.Store
	metrics    *PrometheusMetrics
	logger     *slog.Logger
	policy     OverlapPolicy
	comparator Comparator
}

// WithRunID names the engine in events, journal entries, metrics and logs.
// Default: a random UUID.
func WithRunID(id string) Option {
	return func(cfg *engineConfig) error {
		if id == "" {
			return &EngineError{Message: "run ID cannot be empty", Code: CodeInvalidOption}
		}
		cfg.runID = id
		return nil
	}
}

// WithEmitter sends an observability event on every transition.
// Default: emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.emitter = e
		return nil
	}
}

// WithStore records every transition in a journal. Journal write failures
// are logged and never fail the operation. Default: none.
func WithStore(s store.Store) Option {
	return func(cfg *engineConfig) error {
		cfg.store = s
		return nil
	}
}

// WithMetrics records Prometheus metrics. Default: none.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		if l == nil {
			return &EngineError{Message: "logger cannot be nil", Code: CodeInvalidOption}
		}
		cfg.logger = l
		return nil
	}
}

// WithOverlapPolicy selects how overlapping unchanged regions are treated.
// Default: AllowOverlap.
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(cfg *engineConfig) error {
		if p != ClampOverlap && p != AllowOverlap {
			return &EngineError{Message: "unknown overlap policy", Code: CodeInvalidOption}
		}
		cfg.policy = p
		return nil
	}
}

// WithComparator replaces the step comparator, for example to lower the
// recursion bound. Default: Comparator{}.
func WithComparator(c Comparator) Option {
	return func(cfg *engineConfig) error {
		if c.MaxDepth < 0 {
			return &EngineError{Message: "comparator depth cannot be negative", Code: CodeInvalidOption}
		}
		cfg.comparator = c
		return nil
	}
}
