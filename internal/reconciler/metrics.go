package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

// DefaultMetricsNamespace prefixes every metric name.
const DefaultMetricsNamespace = "foo_controller"

// ReconcileDurationBuckets are the histogram buckets, in seconds, of the
// reconcile duration metric.
var ReconcileDurationBuckets = []float64{0.01, 0.1, 0.25, 0.5, 1, 5, 15, 60}

// Metrics tracks reconciliation metrics on a private Prometheus registry.
//
// A Metrics value is created once by the application and shared by the
// manager, which records into it, and the HTTP server, which exposes it.
type Metrics struct {
	registry *prometheus.Registry

	handledEvents     *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	reconcileSuccess  *prometheus.CounterVec
	reconcileErrors   *prometheus.CounterVec
	watchEvents       *prometheus.CounterVec
	namespace         string
}

// NewMetrics creates a registry with every reconciler metric registered.
// An empty namespace selects DefaultMetricsNamespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		handledEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handled_events",
			Help:      "Number of reconciles that completed successfully.",
		}, []string{"kind"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconcile calls.",
			Buckets:   ReconcileDurationBuckets,
		}, []string{"kind"}),
		reconcileSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_success_total",
			Help:      "Number of successful reconciles.",
		}, []string{"kind"}),
		reconcileErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_errors_total",
			Help:      "Number of failed reconciles by failure reason.",
		}, []string{"kind", "reason"}),
		watchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Number of change events received from the store.",
		}, []string{"kind", "type"}),
	}

	m.registry.MustRegister(
		m.handledEvents,
		m.reconcileDuration,
		m.reconcileSuccess,
		m.reconcileErrors,
		m.watchEvents,
	)
	return m
}

// Registry returns the underlying registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEvent counts a handled event of kind.
func (m *Metrics) RecordEvent(kind string) {
	m.handledEvents.WithLabelValues(kind).Inc()
}

// RecordReconcileDuration observes the duration of one reconcile call.
func (m *Metrics) RecordReconcileDuration(kind string, seconds float64) {
	m.reconcileDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordReconcileSuccess counts a successful reconcile.
func (m *Metrics) RecordReconcileSuccess(kind string) {
	m.reconcileSuccess.WithLabelValues(kind).Inc()
}

// RecordReconcileFailure counts a failed reconcile with its reason.
func (m *Metrics) RecordReconcileFailure(kind, reason string) {
	m.reconcileErrors.WithLabelValues(kind, reason).Inc()
}

// RecordWatchEvent counts a change event of the given operation.
func (m *Metrics) RecordWatchEvent(kind string, op ChangeOperation) {
	m.watchEvents.WithLabelValues(kind, string(op)).Inc()
}

// RegisterQueueDepth exposes the value returned by depth as a gauge. It may
// be called once per Metrics.
func (m *Metrics) RegisterQueueDepth(depth func() int) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "queue_depth",
		Help:      "Number of keys waiting in the work queue.",
	}, func() float64 {
		return float64(depth())
	}))
}

// Snapshot returns a copy of every metric family currently registered.
func (m *Metrics) Snapshot() []*dto.MetricFamily {
	families, err := m.registry.Gather()
	if err != nil {
		logging.Warn("Metrics", "Partial metrics snapshot: %v", err)
	}
	return families
}
