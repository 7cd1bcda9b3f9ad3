package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nelknet/dbspgo/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.CircuitMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	cm, err := observability.NewCircuitMetrics(meter)
	require.NoError(t, err)

	return cm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	require.Len(t, sum.DataPoints, 1)

	return sum.DataPoints[0].Value
}

func TestRecordCircuitStep(t *testing.T) {
	t.Parallel()

	cm, reader := setupTestMeter(t)
	ctx := context.Background()

	cm.RecordCircuitStep(ctx)
	cm.RecordCircuitStep(ctx)

	rm := collectMetrics(t, reader)

	steps := findMetric(rm, "dbspgo.circuit.steps.total")
	require.NotNil(t, steps)
	assert.Equal(t, int64(2), sumValue(t, steps))
}

func TestRecordOperatorStep(t *testing.T) {
	t.Parallel()

	cm, reader := setupTestMeter(t)
	ctx := context.Background()

	cm.RecordOperatorStep(ctx, "integrate", 5*time.Millisecond)

	rm := collectMetrics(t, reader)

	duration := findMetric(rm, "dbspgo.operator.step.duration.seconds")
	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)

	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)

	node, ok := dp.Attributes.Value("node")
	require.True(t, ok)
	assert.Equal(t, "integrate", node.AsString())
}

func TestRecordBytesWrittenAndRead(t *testing.T) {
	t.Parallel()

	cm, reader := setupTestMeter(t)
	ctx := context.Background()

	cm.RecordBytesWritten(ctx, 1024)
	cm.RecordBytesWritten(ctx, 0)
	cm.RecordBytesRead(ctx, 512)

	rm := collectMetrics(t, reader)

	written := findMetric(rm, "dbspgo.lsm.bytes.written")
	require.NotNil(t, written)
	assert.Equal(t, int64(1024), sumValue(t, written))

	read := findMetric(rm, "dbspgo.lsm.bytes.read")
	require.NotNil(t, read)
	assert.Equal(t, int64(512), sumValue(t, read))
}

func TestRecordCompaction(t *testing.T) {
	t.Parallel()

	cm, reader := setupTestMeter(t)
	ctx := context.Background()

	cm.RecordCompaction(ctx)
	cm.RecordCompaction(ctx)
	cm.RecordCompaction(ctx)

	rm := collectMetrics(t, reader)

	compactions := findMetric(rm, "dbspgo.lsm.compactions.total")
	require.NotNil(t, compactions)
	assert.Equal(t, int64(3), sumValue(t, compactions))
}

func TestNewCircuitMetricsWithInitProvider(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	cm, err := observability.NewCircuitMetrics(providers.Meter)
	require.NoError(t, err)
	assert.NotNil(t, cm)

	cm.RecordCircuitStep(context.Background())
}
