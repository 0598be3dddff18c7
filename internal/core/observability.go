package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"incidentcore/pkg/domain"
)

// MetricsRecorder receives operation outcomes, serializer queue depth, and
// join consistency signals.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	QueueDepth(depth int)
	CorruptFragment(entity domain.EntityType, collection string)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) QueueDepth(int)                                       {}
func (noopMetrics) CorruptFragment(domain.EntityType, string)            {}

// PrometheusMetrics implements MetricsRecorder with client_golang collectors.
type PrometheusMetrics struct {
	durations *prometheus.HistogramVec
	queue     prometheus.Gauge
	corrupt   *prometheus.CounterVec
}

// NewPrometheusMetrics builds the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "incidentcore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of core operations by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "incidentcore",
			Name:      "serializer_queue_depth",
			Help:      "Mutations waiting in the write serializer queue.",
		}),
		corrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incidentcore",
			Name:      "corrupt_fragments_total",
			Help:      "Anchor rows found without a required fragment row.",
		}, []string{"entity", "collection"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.durations, m.queue, m.corrupt} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records an operation outcome.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	m.durations.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// QueueDepth sets the serializer queue gauge.
func (m *PrometheusMetrics) QueueDepth(depth int) {
	m.queue.Set(float64(depth))
}

// CorruptFragment counts a missing required fragment row.
func (m *PrometheusMetrics) CorruptFragment(entity domain.EntityType, collection string) {
	m.corrupt.WithLabelValues(string(entity), collection).Inc()
}
