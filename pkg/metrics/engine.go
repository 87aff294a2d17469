package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

// Outbox publish results.
const (
	OutboxPublished = "published"
	OutboxFailed    = "failed"
	OutboxTerminal  = "terminal"
)

// EngineMetrics records review decisions, the pending-count view and the
// outbox relay.
type EngineMetrics struct {
	decisions       *prometheus.CounterVec
	pending         prometheus.Gauge
	requeryDuration prometheus.Histogram
	requeryFailures prometheus.Counter
	outbox          *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_decisions_total",
		Help: "Approve and reject attempts by outcome.",
	}, []string{"decision", "outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_requests",
		Help: "Requests whose items are all still pending.",
	})
	requeryDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pending_count_requery_seconds",
		Help:    "Duration of pending-count re-queries in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	requeryFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pending_count_requery_failures_total",
		Help: "Pending-count re-queries that failed.",
	})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox events handled by the relay by result.",
	}, []string{"result"})
	reg.MustRegister(decisions, pending, requeryDuration, requeryFailures, outbox)
	return &EngineMetrics{
		decisions:       decisions,
		pending:         pending,
		requeryDuration: requeryDuration,
		requeryFailures: requeryFailures,
		outbox:          outbox,
	}
}

// ObserveDecision counts an approve or reject attempt.
func (m *EngineMetrics) ObserveDecision(decision string, err error) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(decision), outcomeLabel(err)).Inc()
}

// SetPending publishes the latest pending-request count.
func (m *EngineMetrics) SetPending(count int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}

// ObserveRequery records a pending-count re-query.
func (m *EngineMetrics) ObserveRequery(duration time.Duration, err error) {
	if m == nil || m.requeryDuration == nil {
		return
	}
	m.requeryDuration.Observe(duration.Seconds())
	if err != nil {
		m.requeryFailures.Inc()
	}
}

// IncOutbox counts a relay result.
func (m *EngineMetrics) IncOutbox(result string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(result)).Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(pkgerrors.CodeOf(err)))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
