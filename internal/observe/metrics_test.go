package observe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/kventity/internal/observe"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: unexpected error: %v", err)
	}
	if m.OpDuration == nil || m.OpErrors == nil || m.ScanPages == nil ||
		m.MutationBatchSize == nil || m.ActiveIterators == nil {
		t.Fatal("NewMetrics: expected every instrument to be initialised")
	}

	// Recording must not panic.
	ctx := context.Background()
	m.RecordOp(ctx, "attach", 5*time.Millisecond, nil)
	m.RecordOp(ctx, "attach", 5*time.Millisecond, errors.New("boom"))
	m.RecordScanPage(ctx, "query")
	m.RecordBatch(ctx, 7)
	m.IteratorOpened(ctx)
	m.IteratorClosed(ctx)
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var m *observe.Metrics
	m.RecordOp(ctx, "attach", time.Millisecond, nil)
	m.RecordScanPage(ctx, "query")
	m.RecordBatch(ctx, 1)
	m.IteratorOpened(ctx)
	m.IteratorClosed(ctx)
}
