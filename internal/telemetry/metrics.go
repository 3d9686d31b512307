// Package telemetry exports matcher and context manager activity as
// Prometheus metrics.
//
// Metrics implements both matcher.Observer and workflow.Observer; pass it
// to matcher.WithObserver and workflow.WithObserver. Every collector is
// registered on the Registerer given to NewMetrics, never on the global
// default registry.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/workflow"
)

const (
	namespace          = "vox"
	matcherSubsystem   = "matcher"
	workflowSubsystem  = "workflow"
	noMatchLabel       = "none"
	matchLatencyBucket = 0.0001
)

// Metrics holds the collectors.
type Metrics struct {
	MatchesTotal     *prometheus.CounterVec
	MatchConfidence  *prometheus.HistogramVec
	MatchDuration    prometheus.Histogram
	ReloadsTotal     prometheus.Counter
	Patterns         prometheus.Gauge
	TransitionsTotal *prometheus.CounterVec
	RejectedTotal    *prometheus.CounterVec
	TimeoutsTotal    *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	RecoveriesTotal  *prometheus.CounterVec
	ActiveContext    *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
// It panics if a collector is already registered, like promauto does.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: matcherSubsystem,
			Name:      "matches_total",
			Help:      "Match calls by match type (none for failed matches)",
		}, []string{"type"}),
		MatchConfidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: matcherSubsystem,
			Name:      "confidence",
			Help:      "Confidence of successful matches by match type",
			Buckets:   []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1.0},
		}, []string{"type"}),
		MatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: matcherSubsystem,
			Name:      "duration_seconds",
			Help:      "Time spent classifying one transcript",
			Buckets:   prometheus.ExponentialBuckets(matchLatencyBucket, 4, 8),
		}),
		ReloadsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: matcherSubsystem,
			Name:      "reloads_total",
			Help:      "Registry swaps",
		}),
		Patterns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: matcherSubsystem,
			Name:      "patterns",
			Help:      "Patterns in the registry in use",
		}),
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: workflowSubsystem,
			Name:      "transitions_total",
			Help:      "Context transitions by source, target and initiator",
		}, []string{"from", "to", "user_initiated"}),
		RejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: workflowSubsystem,
			Name:      "rejected_transitions_total",
			Help:      "Transitions refused by the strict transition table",
		}, []string{"from", "to"}),
		TimeoutsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: workflowSubsystem,
			Name:      "timeouts_total",
			Help:      "Contexts that expired",
		}, []string{"context"}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: workflowSubsystem,
			Name:      "errors_total",
			Help:      "Errors reported to the context manager by origin context",
		}, []string{"origin", "escalated"}),
		RecoveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: workflowSubsystem,
			Name:      "recoveries_total",
			Help:      "Completed error recoveries by action",
		}, []string{"action"}),
		ActiveContext: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: workflowSubsystem,
			Name:      "active_context",
			Help:      "1 for the current context type, 0 for the others",
		}, []string{"context"}),
	}
}

// ObserveMatch implements matcher.Observer.
func (m *Metrics) ObserveMatch(r ir.MatchResult, elapsed time.Duration) {
	m.MatchDuration.Observe(elapsed.Seconds())
	if !r.Matched() {
		m.MatchesTotal.WithLabelValues(noMatchLabel).Inc()
		return
	}
	m.MatchesTotal.WithLabelValues(string(r.MatchType)).Inc()
	m.MatchConfidence.WithLabelValues(string(r.MatchType)).Observe(r.Confidence)
}

// ObserveReload implements matcher.Observer.
func (m *Metrics) ObserveReload(patterns int) {
	m.ReloadsTotal.Inc()
	m.Patterns.Set(float64(patterns))
}

// ObserveTransition implements workflow.Observer.
func (m *Metrics) ObserveTransition(from, to ir.ContextType, userInitiated bool) {
	m.TransitionsTotal.WithLabelValues(string(from), string(to), strconv.FormatBool(userInitiated)).Inc()
	if from != "" {
		m.ActiveContext.WithLabelValues(string(from)).Set(0)
	}
	m.ActiveContext.WithLabelValues(string(to)).Set(1)
}

// ObserveRejected implements workflow.Observer.
func (m *Metrics) ObserveRejected(from, to ir.ContextType) {
	m.RejectedTotal.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveTimeout implements workflow.Observer.
func (m *Metrics) ObserveTimeout(ct ir.ContextType) {
	m.TimeoutsTotal.WithLabelValues(string(ct)).Inc()
}

// ObserveError implements workflow.Observer.
func (m *Metrics) ObserveError(origin ir.ContextType, escalated bool) {
	m.ErrorsTotal.WithLabelValues(string(origin), strconv.FormatBool(escalated)).Inc()
}

// ObserveRecovery implements workflow.Observer.
func (m *Metrics) ObserveRecovery(action workflow.RecoveryAction) {
	m.RecoveriesTotal.WithLabelValues(string(action)).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
