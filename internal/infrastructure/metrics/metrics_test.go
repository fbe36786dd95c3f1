package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_RecordsWorkflowsAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.ObserveWorkflow("mint", "confirmed", 2*time.Second)
	m.ObserveWorkflow("mint", "confirmed", time.Second)
	m.ObserveWorkflow("buy", "failed", time.Second)
	m.SetReconciliationPending(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.workflowTotal.WithLabelValues("mint", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflowTotal.WithLabelValues("buy", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.reconcilePending))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
