package observability

import (
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Decision path labels.
const (
	PathModel    = "model"
	PathFallback = "fallback"
)

// Turn outcome labels.
const (
	TurnComplete       = "complete"
	TurnPendingActions = "pending_actions"
	TurnStepLimit      = "step_limit"
	TurnError          = "error"
)

var decisions = []string{"intent", "escalation", "reply", "chat"}

// Metrics holds all Prometheus metrics for the support service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	decisionDuration *prometheus.HistogramVec
	decisionPath     *prometheus.CounterVec
	externalErrors   *prometheus.CounterVec
	toolExecutions   *prometheus.CounterVec
	turns            *prometheus.CounterVec
	escalations      *prometheus.CounterVec
	accountMutations *prometheus.CounterVec
	reconciliations  prometheus.Counter
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		decisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "support_decision_duration_seconds",
				Help:    "Duration of decision components by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"decision"},
		),
		decisionPath: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_decision_path_total",
				Help: "Decisions taken by the model or by the rule fallback.",
			},
			[]string{"decision", "path"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		toolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_tool_executions_total",
				Help: "Tool calls executed, by tool and kind.",
			},
			[]string{"tool", "kind"},
		),
		turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_turns_total",
				Help: "Conversation turns by outcome.",
			},
			[]string{"outcome"},
		),
		escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_escalations_total",
				Help: "Tickets minted, by assigned department.",
			},
			[]string{"department"},
		),
		accountMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_account_mutations_total",
				Help: "Account mutations by operation and result.",
			},
			[]string{"operation", "result"},
		),
		reconciliations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "support_overlay_reconciliations_total",
				Help: "Times the optimistic overlay was dropped after the authoritative copy caught up.",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordDecision records how long a decision took and which path produced it.
func (m *Metrics) RecordDecision(decision, path string, d time.Duration) {
	m.decisionDuration.WithLabelValues(decision).Observe(d.Seconds())
	m.decisionPath.WithLabelValues(decision, path).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrToolExecution counts one tool call. kind is internal or external.
func (m *Metrics) IncrToolExecution(tool, kind string) {
	m.toolExecutions.WithLabelValues(tool, kind).Inc()
}

// IncrTurn counts a finished turn.
func (m *Metrics) IncrTurn(outcome string) {
	m.turns.WithLabelValues(outcome).Inc()
}

// IncrEscalation counts a minted ticket.
func (m *Metrics) IncrEscalation(department string) {
	m.escalations.WithLabelValues(department).Inc()
}

// IncrAccountMutation counts an account store mutation.
func (m *Metrics) IncrAccountMutation(operation string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.accountMutations.WithLabelValues(operation, result).Inc()
}

// IncrReconciliation counts an overlay drop.
func (m *Metrics) IncrReconciliation() {
	m.reconciliations.Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetAgentSnapshot returns a snapshot of agent-related metrics suitable for the
// GET /v1/metrics/agent endpoint.
func (m *Metrics) GetAgentSnapshot() *domain.AgentMetrics {
	complete := getCounterValue(m.turns, TurnComplete)
	pending := getCounterValue(m.turns, TurnPendingActions)
	limited := getCounterValue(m.turns, TurnStepLimit)
	failed := getCounterValue(m.turns, TurnError)
	totalTurns := complete + pending + limited + failed

	var modelCount, fallbackCount, latencySum float64
	var latencyCount uint64
	fallbackBy := make(map[string]int64, len(decisions))
	for _, d := range decisions {
		fb := getCounterValue(m.decisionPath, d, PathFallback)
		modelCount += getCounterValue(m.decisionPath, d, PathModel)
		fallbackCount += fb
		fallbackBy[d] = int64(fb)

		sum, count := getHistogramSum(m.decisionDuration, d)
		latencySum += sum
		latencyCount += count
	}

	errorRate := float64(0)
	fallbackRate := float64(0)
	avgLatencyMs := float64(0)
	cacheHitRate := float64(0)

	if totalTurns > 0 {
		errorRate = failed / totalTurns
	}
	if modelCount+fallbackCount > 0 {
		fallbackRate = fallbackCount / (modelCount + fallbackCount)
	}
	if latencyCount > 0 {
		avgLatencyMs = latencySum / float64(latencyCount) * 1000
	}

	hits := getCounterValue(m.cacheHits, "session")
	misses := getCounterValue(m.cacheMisses, "session")
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.AgentMetrics{
		TotalTurns:           int64(totalTurns),
		PendingActionTurns:   int64(pending),
		ErrorRate:            errorRate,
		FallbackRate:         fallbackRate,
		FallbackByDecision:   fallbackBy,
		AvgDecisionLatencyMs: avgLatencyMs,
		ToolExecutions:       int64(sumCounterVec(m.toolExecutions)),
		Escalations:          int64(sumCounterVec(m.escalations)),
		Reconciliations:      int64(readCounter(m.reconciliations)),
		SessionCacheHitRate:  cacheHitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return readCounter(cv.WithLabelValues(labels...))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getHistogramSum(hv *prometheus.HistogramVec, label string) (float64, uint64) {
	obs, err := hv.GetMetricWithLabelValues(label)
	if err != nil {
		return 0, 0
	}
	m := &dto.Metric{}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		return 0, 0
	}
	if m.Histogram == nil {
		return 0, 0
	}
	return m.Histogram.GetSampleSum(), m.Histogram.GetSampleCount()
}

// sumCounterVec adds up every child of cv.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := 0.0
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil {
			total += m.Counter.GetValue()
		}
	}
	return total
}
