package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_Engine(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	rec := &recorder{}
	engine := newTestEngine(t, WithMetrics(metrics))

	if err := engine.Apply(ctx, Seq(rec.step("A"), rec.step("B"))); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := testutil.ToFloat64(metrics.transitions.WithLabelValues("test-run", "ran")); got != 2 {
		t.Errorf("expected 2 ran transitions, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.cursor.WithLabelValues("test-run")); got != 1 {
		t.Errorf("expected cursor 1, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.tracked.WithLabelValues("test-run")); got != 2 {
		t.Errorf("expected 2 tracked steps, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.reconciliations.WithLabelValues("test-run")); got != 1 {
		t.Errorf("expected 1 reconciliation, got %v", got)
	}

	if err := engine.Apply(ctx, Seq(rec.step("A"), rec.step("C"))); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := testutil.ToFloat64(metrics.reused.WithLabelValues("test-run")); got != 1 {
		t.Errorf("expected 1 reused step, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.transitions.WithLabelValues("test-run", "undone")); got != 1 {
		t.Errorf("expected 1 undone transition, got %v", got)
	}

	if n := testutil.CollectAndCount(metrics.stepLatency); n != 4 {
		t.Errorf("expected 4 latency series (A, B, C do; B undo), got %d", n)
	}
}

func TestPrometheusMetrics_Failures(t *testing.T) {
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())
	rec := &recorder{}
	engine := newTestEngine(t, WithMetrics(metrics))

	_ = engine.Apply(context.Background(), Seq(rec.failing("A", errors.New("boom"))))

	if got := testutil.ToFloat64(metrics.failures.WithLabelValues("test-run", "A", PhaseDo)); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}

func TestPrometheusMetrics_Disable(t *testing.T) {
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())

	metrics.Disable()
	metrics.RecordTransition("r", Ran)
	metrics.RecordStepLatency("r", "A", PhaseDo, time.Millisecond, "error")
	metrics.UpdateCursor("r", 3, 4)
	metrics.RecordReconciliation("r", 2)

	if n := testutil.CollectAndCount(metrics.transitions); n != 0 {
		t.Errorf("expected no series while disabled, got %d", n)
	}

	metrics.Enable()
	metrics.RecordTransition("r", Ran)
	if got := testutil.ToFloat64(metrics.transitions.WithLabelValues("r", "ran")); got != 1 {
		t.Errorf("expected 1 transition after Enable, got %v", got)
	}
}

func TestPrometheusMetrics_NilSafe(t *testing.T) {
	var metrics *PrometheusMetrics
	metrics.RecordTransition("r", Ran)
	metrics.RecordStepLatency("r", "A", PhaseDo, time.Millisecond, "success")
	metrics.UpdateCursor("r", 0, 1)
	metrics.RecordReconciliation("r", 0)
}
