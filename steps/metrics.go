package steps

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects engine metrics for Prometheus.
//
// Metrics exposed (all namespaced with "hotsteps_"):
//
//  1. transitions_total (counter): state transitions by resulting state.
//     Labels: run_id, state.
//  2. step_latency_ms (histogram): duration of a step's Do or of its undo
//     actions. Labels: run_id, step_id, phase (do/undo), status (success/error).
//  3. step_failures_total (counter): failed Do calls and undo actions.
//     Labels: run_id, step_id, phase.
//  4. cursor (gauge): index of the last step that ran. Labels: run_id.
//  5. tracked_steps (gauge): length of the tracked sequence. Labels: run_id.
//  6. reconciliations_total (counter): Apply calls. Labels: run_id.
//  7. reused_steps (gauge): unchanged prefix kept by the last Apply.
//     Labels: run_id.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := steps.NewPrometheusMetrics(registry)
//	engine, err := steps.New(steps.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	transitions     *prometheus.CounterVec
	stepLatency     *prometheus.HistogramVec
	failures        *prometheus.CounterVec
	cursor          *prometheus.GaugeVec
	tracked         *prometheus.GaugeVec
	reconciliations *prometheus.CounterVec
	reused          *prometheus.GaugeVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all engine metrics with
// registry. A nil registry means prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotsteps",
			Name:      "transitions_total",
			Help:      "Step state transitions by resulting state",
		}, []string{"run_id", "state"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotsteps",
			Name:      "step_latency_ms",
			Help:      "Duration of step operations and undo actions in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"run_id", "step_id", "phase", "status"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotsteps",
			Name:      "step_failures_total",
			Help:      "Step operations and undo actions that returned an error",
		}, []string{"run_id", "step_id", "phase"}),
		cursor: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hotsteps",
			Name:      "cursor",
			Help:      "Index of the last step that ran (-1 when nothing ran)",
		}, []string{"run_id"}),
		tracked: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hotsteps",
			Name:      "tracked_steps",
			Help:      "Number of steps in the tracked sequence",
		}, []string{"run_id"}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotsteps",
			Name:      "reconciliations_total",
			Help:      "Number of sequences applied",
		}, []string{"run_id"}),
		reused: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hotsteps",
			Name:      "reused_steps",
			Help:      "Unchanged prefix kept by the most recent reconciliation",
		}, []string{"run_id"}),
	}
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordTransition counts one state transition.
func (pm *PrometheusMetrics) RecordTransition(runID string, state StateKind) {
	if !pm.on() {
		return
	}
	pm.transitions.WithLabelValues(runID, state.String()).Inc()
}

// RecordStepLatency observes the duration of a Do call or of a step's undo
// actions. status is "success" or "error".
func (pm *PrometheusMetrics) RecordStepLatency(runID, stepID, phase string, latency time.Duration, status string) {
	if !pm.on() {
		return
	}
	pm.stepLatency.WithLabelValues(runID, stepID, phase, status).Observe(float64(latency.Milliseconds()))
	if status != "success" {
		pm.failures.WithLabelValues(runID, stepID, phase).Inc()
	}
}

// UpdateCursor sets the cursor and tracked_steps gauges.
func (pm *PrometheusMetrics) UpdateCursor(runID string, cursor, tracked int) {
	if !pm.on() {
		return
	}
	pm.cursor.WithLabelValues(runID).Set(float64(cursor))
	pm.tracked.WithLabelValues(runID).Set(float64(tracked))
}

// RecordReconciliation counts an Apply call and the prefix it kept.
func (pm *PrometheusMetrics) RecordReconciliation(runID string, unchangedPrefix int) {
	if !pm.on() {
		return
	}
	pm.reconciliations.WithLabelValues(runID).Inc()
	pm.reused.WithLabelValues(runID).Set(float64(unchangedPrefix))
}

// Disable temporarily disables metric recording.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
