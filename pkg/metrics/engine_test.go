package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

func TestEngineMetricsExportsDecisionsAndPending(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEngineMetrics(reg)

	metrics.ObserveDecision("approve", nil)
	metrics.ObserveDecision("approve", pkgerrors.New(pkgerrors.CodeStateConflict, "already decided"))
	metrics.ObserveDecision("reject", nil)
	metrics.SetPending(4)
	metrics.ObserveRequery(20*time.Millisecond, nil)
	metrics.ObserveRequery(5*time.Millisecond, fmt.Errorf("db down"))
	metrics.IncOutbox(OutboxPublished)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterWithLabels(t, mfs, "review_decisions_total", map[string]string{"decision": "approve", "outcome": "ok"}); got != 1 {
		t.Fatalf("expected approve ok=1, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "review_decisions_total", map[string]string{"decision": "approve", "outcome": "state_conflict"}); got != 1 {
		t.Fatalf("expected approve state_conflict=1, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "outbox_events_total", map[string]string{"result": OutboxPublished}); got != 1 {
		t.Fatalf("expected outbox published=1, got %f", got)
	}

	pending := findMetricFamily(mfs, "pending_requests")
	if pending == nil || pending.GetMetric()[0].GetGauge().GetValue() != 4 {
		t.Fatalf("expected pending gauge 4")
	}

	failures := findMetricFamily(mfs, "pending_count_requery_failures_total")
	if failures == nil || failures.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one requery failure")
	}

	hist := findMetricFamily(mfs, "pending_count_requery_seconds")
	if hist == nil || hist.GetMetric()[0].GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected two requery observations")
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	metrics := NewEngineMetrics(nil)
	metrics.ObserveDecision("approve", nil)
	metrics.SetPending(1)
	metrics.ObserveRequery(time.Millisecond, nil)
	metrics.IncOutbox("")

	var nilMetrics *EngineMetrics
	nilMetrics.SetPending(1)
}

func counterWithLabels(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q missing labels %v", name, labels)
	return 0
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
