package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/funnel/ext"
	"github.com/xraph/funnel/task"
)

// meterName is the instrumentation scope name for funnel observability.
const meterName = "github.com/xraph/funnel/observability"

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.TaskAdmitted  = (*MetricsExtension)(nil)
	_ ext.TaskStarted   = (*MetricsExtension)(nil)
	_ ext.TaskCompleted = (*MetricsExtension)(nil)
	_ ext.TaskFailed    = (*MetricsExtension)(nil)
)

// Snapshot supplies the current queue counters for the observable
// gauges. Queue.Snapshot satisfies it directly.
type Snapshot func() task.Counters

// MetricsExtension records lifecycle metrics for a funnel dispatcher.
// Register it as an extension to track admission, completion, and
// failure counts, plus live gauges for backlog depth and active worker
// activations.
//
// Instruments:
//   - funnel.task.admitted (Int64Counter)
//   - funnel.task.started (Int64Counter)
//   - funnel.task.completed (Int64Counter)
//   - funnel.task.failed (Int64Counter)
//   - funnel.queue.backlog (Int64ObservableGauge, from Snapshot)
//   - funnel.queue.running (Int64ObservableGauge, from Snapshot)
type MetricsExtension struct {
	admitted  metric.Int64Counter
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global OTel
// MeterProvider. snapshot feeds the backlog/running gauges; a nil
// snapshot disables them.
func NewMetricsExtension(snapshot Snapshot) *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName), snapshot)
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter, snapshot Snapshot) *MetricsExtension {
	m := &MetricsExtension{}

	// On instrument errors the OTel API returns noop instruments, so
	// the extension degrades gracefully.
	m.admitted, _ = meter.Int64Counter(
		"funnel.task.admitted",
		metric.WithDescription("Tasks handed to the queue by the admission gate"),
		metric.WithUnit("{task}"),
	)
	m.started, _ = meter.Int64Counter(
		"funnel.task.started",
		metric.WithDescription("Tasks picked up by a worker activation"),
		metric.WithUnit("{task}"),
	)
	m.completed, _ = meter.Int64Counter(
		"funnel.task.completed",
		metric.WithDescription("Tasks that finished successfully"),
		metric.WithUnit("{task}"),
	)
	m.failed, _ = meter.Int64Counter(
		"funnel.task.failed",
		metric.WithDescription("Tasks whose body returned an error"),
		metric.WithUnit("{task}"),
	)

	if snapshot != nil {
		backlog, _ := meter.Int64ObservableGauge(
			"funnel.queue.backlog",
			metric.WithDescription("Tasks enqueued but not yet claimed by a worker activation"),
			metric.WithUnit("{task}"),
		)
		running, _ := meter.Int64ObservableGauge(
			"funnel.queue.running",
			metric.WithDescription("Active worker activations"),
			metric.WithUnit("{activation}"),
		)
		_, _ = meter.RegisterCallback(
			func(_ context.Context, o metric.Observer) error {
				s := snapshot()
				o.ObserveInt64(backlog, int64(s.CurrentQueued))
				o.ObserveInt64(running, int64(s.CurrentRunning))
				return nil
			},
			backlog, running,
		)
	}

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnTaskAdmitted implements ext.TaskAdmitted.
func (m *MetricsExtension) OnTaskAdmitted(ctx context.Context, _ *task.Task) error {
	m.admitted.Add(ctx, 1)
	return nil
}

// OnTaskStarted implements ext.TaskStarted.
func (m *MetricsExtension) OnTaskStarted(ctx context.Context, _ *task.Task) error {
	m.started.Add(ctx, 1)
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(ctx context.Context, _ *task.Task, _ time.Duration) error {
	m.completed.Add(ctx, 1)
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (m *MetricsExtension) OnTaskFailed(ctx context.Context, _ *task.Task, _ error) error {
	m.failed.Add(ctx, 1)
	return nil
}
