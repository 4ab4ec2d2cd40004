package reconciler

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("")

	m.RecordEvent("Foo")
	m.RecordEvent("Foo")
	m.RecordReconcileSuccess("Foo")
	m.RecordReconcileFailure("Foo", ReasonConflict)
	m.RecordWatchEvent("Foo", OperationAdded)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.handledEvents.WithLabelValues("Foo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileSuccess.WithLabelValues("Foo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileErrors.WithLabelValues("Foo", ReasonConflict)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.reconcileErrors.WithLabelValues("Foo", ReasonTransport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchEvents.WithLabelValues("Foo", "Added")))
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics("test")
	m.RecordEvent("Foo")
	m.RecordReconcileDuration("Foo", 0.2)
	require.NoError(t, m.RegisterQueueDepth(func() int { return 3 }))

	families := m.Snapshot()
	byName := make(map[string]float64)
	for _, mf := range families {
		metric := mf.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			byName[mf.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			byName[mf.GetName()] = metric.GetGauge().GetValue()
		case metric.GetHistogram() != nil:
			byName[mf.GetName()] = float64(metric.GetHistogram().GetSampleCount())
		}
	}

	assert.Equal(t, 1.0, byName["test_handled_events"])
	assert.Equal(t, 1.0, byName["test_reconcile_duration_seconds"])
	assert.Equal(t, 3.0, byName["test_queue_depth"])
}

func TestMetrics_HistogramBuckets(t *testing.T) {
	m := NewMetrics("")
	m.RecordReconcileDuration("Foo", 0.3)

	var found bool
	for _, mf := range m.Snapshot() {
		if mf.GetName() != "foo_controller_reconcile_duration_seconds" {
			continue
		}
		found = true
		buckets := mf.GetMetric()[0].GetHistogram().GetBucket()
		require.Len(t, buckets, len(ReconcileDurationBuckets))
		for i, b := range buckets {
			assert.Equal(t, ReconcileDurationBuckets[i], b.GetUpperBound())
		}
	}
	assert.True(t, found)
}

func TestMetrics_QueueDepthRegisteredOnce(t *testing.T) {
	m := NewMetrics("")
	require.NoError(t, m.RegisterQueueDepth(func() int { return 0 }))
	assert.Error(t, m.RegisterQueueDepth(func() int { return 0 }))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")
	a.RecordEvent("Foo")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.handledEvents.WithLabelValues("Foo")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.handledEvents.WithLabelValues("Foo")))
}
