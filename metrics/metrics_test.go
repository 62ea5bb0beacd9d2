package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())

	m.Invocation("ok")
	m.RuleRun("completed", 2*time.Second)
	m.RuleRun("skipped", 0)
	m.Message(true)
	m.Message(true)
	m.Message(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ruleRuns.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Invocation("ok")
	m.RuleRun("error", time.Second)
	m.Message(false)
}
