// Package metrics exposes Prometheus collectors for the billing dispatch.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	invocations  *prometheus.CounterVec
	ruleRuns     *prometheus.CounterVec
	messages     *prometheus.CounterVec
	ruleDuration prometheus.Histogram
}

// MustNew builds the collectors and registers them on reg. It panics on
// duplicate registration, like the promauto helpers.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cobranca",
			Subsystem: "billing",
			Name:      "invocations_total",
			Help:      "Trigger invocations by outcome.",
		}, []string{"outcome"}),
		ruleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cobranca",
			Subsystem: "billing",
			Name:      "rule_runs_total",
			Help:      "Rule executions by final run status, plus skipped ones.",
		}, []string{"status"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cobranca",
			Subsystem: "billing",
			Name:      "messages_total",
			Help:      "Provider sends by result.",
		}, []string{"result"}),
		ruleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cobranca",
			Subsystem: "billing",
			Name:      "rule_duration_seconds",
			Help:      "Wall time of one rule execution, waits included.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
	reg.MustRegister(m.invocations, m.ruleRuns, m.messages, m.ruleDuration)
	return m
}

func (m *Metrics) Invocation(outcome string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RuleRun(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.ruleRuns.WithLabelValues(status).Inc()
	if status != "skipped" {
		m.ruleDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) Message(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.messages.WithLabelValues(result).Inc()
}
