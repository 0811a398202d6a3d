// Package observe provides observability primitives for the kventity data
// layer: OpenTelemetry metric instruments and a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter is available via [InitProvider] so that metrics can be scraped
// from the standard /metrics endpoint. All recording helpers are nil-receiver
// safe, so a DB constructed without metrics pays only a nil check.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kventity metrics.
const meterName = "github.com/MrWong99/kventity"

// Metrics holds the OTel metric instruments for the data layer. All fields
// are safe for concurrent use — the underlying OTel types handle their own
// synchronisation.
type Metrics struct {
	// OpDuration tracks the latency of one logical data-layer operation
	// (attach, detach, delete, link, query, …). Attributes:
	//   attribute.String("op", ...), attribute.String("status", "ok"|"error")
	OpDuration metric.Float64Histogram

	// OpErrors counts failed operations. Attribute: attribute.String("op", ...)
	OpErrors metric.Int64Counter

	// ScanPages counts pages fetched by paged range scans.
	// Attribute: attribute.String("op", ...)
	ScanPages metric.Int64Counter

	// MutationBatchSize tracks the number of mutations committed per
	// transaction.
	MutationBatchSize metric.Int64Histogram

	// ActiveIterators tracks open component/edge iterators.
	ActiveIterators metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// KV round-trips: sub-millisecond in-memory paths up to multi-second
// cross-region commits.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.OpDuration, err = m.Float64Histogram("kventity.op.duration",
		metric.WithDescription("Latency of one data-layer operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.OpErrors, err = m.Int64Counter("kventity.op.errors",
		metric.WithDescription("Failed data-layer operations."),
	); err != nil {
		return nil, err
	}
	if met.ScanPages, err = m.Int64Counter("kventity.scan.pages",
		metric.WithDescription("Pages fetched by paged range scans."),
	); err != nil {
		return nil, err
	}
	if met.MutationBatchSize, err = m.Int64Histogram("kventity.txn.mutations",
		metric.WithDescription("Mutations committed per transaction."),
		metric.WithUnit("{mutation}"),
	); err != nil {
		return nil, err
	}
	if met.ActiveIterators, err = m.Int64UpDownCounter("kventity.iterators.active",
		metric.WithDescription("Currently open iterators."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordOp records one finished operation.
func (m *Metrics) RecordOp(ctx context.Context, op string, d time.Duration, opErr error) {
	if m == nil {
		return
	}
	status := "ok"
	if opErr != nil {
		status = "error"
		m.OpErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
	m.OpDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
}

// RecordScanPage counts one fetched scan page.
func (m *Metrics) RecordScanPage(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.ScanPages.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordBatch records the size of a committed mutation batch.
func (m *Metrics) RecordBatch(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.MutationBatchSize.Record(ctx, int64(n))
}

// IteratorOpened marks one iterator as open.
func (m *Metrics) IteratorOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveIterators.Add(ctx, 1)
}

// IteratorClosed marks one iterator as closed.
func (m *Metrics) IteratorClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveIterators.Add(ctx, -1)
}
