// Package telemetry records the Authority's measurements as OpenTelemetry
// metrics and sets up the meter provider that exports them.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	signbroker "github.com/vaultsandbox/signbroker-go"
)

// Metrics implements signbroker.Metrics.
type Metrics struct {
	enqueued metric.Int64Counter
	resolved metric.Int64Counter
	failed   metric.Int64Counter
	pending  metric.Int64UpDownCounter
	waited   metric.Float64Histogram
	duration metric.Float64Histogram
}

var _ signbroker.Metrics = (*Metrics)(nil)

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.enqueued, err = meter.Int64Counter("signbroker.requests.enqueued",
		metric.WithDescription("Requests submitted by callers"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.resolved, err = meter.Int64Counter("signbroker.requests.resolved",
		metric.WithDescription("Requests that left the queue, by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter("signbroker.decisions.failed",
		metric.WithDescription("Approvals that failed and left the request pending"),
		metric.WithUnit("{decision}"),
	); err != nil {
		return nil, err
	}
	if m.pending, err = meter.Int64UpDownCounter("signbroker.requests.pending",
		metric.WithDescription("Requests awaiting a decision"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.waited, err = meter.Float64Histogram("signbroker.request.wait",
		metric.WithDescription("Time from submission to resolution"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 900),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("signbroker.decision.duration",
		metric.WithDescription("Time spent in the vault for one approval"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func kindAttr(kind signbroker.Kind) attribute.KeyValue {
	return attribute.String("kind", string(kind))
}

// RequestEnqueued implements signbroker.Metrics.
func (m *Metrics) RequestEnqueued(ctx context.Context, kind signbroker.Kind) {
	attrs := metric.WithAttributes(kindAttr(kind))
	m.enqueued.Add(ctx, 1, attrs)
	m.pending.Add(ctx, 1, attrs)
}

// RequestResolved implements signbroker.Metrics.
func (m *Metrics) RequestResolved(ctx context.Context, kind signbroker.Kind, outcome signbroker.Outcome, pendingFor time.Duration) {
	m.pending.Add(ctx, -1, metric.WithAttributes(kindAttr(kind)))
	attrs := metric.WithAttributes(kindAttr(kind), attribute.String("outcome", string(outcome)))
	m.resolved.Add(ctx, 1, attrs)
	m.waited.Record(ctx, pendingFor.Seconds(), attrs)
}

// DecisionFailed implements signbroker.Metrics.
func (m *Metrics) DecisionFailed(ctx context.Context, kind signbroker.Kind, reason string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(kindAttr(kind), attribute.String("reason", reason)))
}

// DecisionDuration implements signbroker.Metrics.
func (m *Metrics) DecisionDuration(ctx context.Context, kind signbroker.Kind, d time.Duration) {
	m.duration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(kindAttr(kind)))
}
