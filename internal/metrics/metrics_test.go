package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveDecision("admitted")
	m.ObserveDecision("admitted")
	m.ObserveDecision("dropped_preview")
	m.ObserveResult("uploaded", 1500*time.Millisecond)
	m.ObserveResult("failed", time.Second)
	m.SetQueueDepth(3)
	m.SetProcessing(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.capturesReceived.WithLabelValues("admitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.capturesReceived.WithLabelValues("dropped_preview")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsProcessed.WithLabelValues("uploaded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processing))

	m.SetProcessing(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.processing))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}
