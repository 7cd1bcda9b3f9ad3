package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCircuitSteps     = "dbspgo.circuit.steps.total"
	metricOperatorDuration = "dbspgo.operator.step.duration.seconds"
	metricLSMBytesWritten  = "dbspgo.lsm.bytes.written"
	metricLSMBytesRead     = "dbspgo.lsm.bytes.read"
	metricCompactions      = "dbspgo.lsm.compactions.total"

	attrNode = "node"
)

// stepDurationBucketBoundaries covers 100us to 10s: circuit steps and
// operator steps are expected to run in microseconds to low seconds.
var stepDurationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// CircuitMetrics holds the OTel instruments exercising a circuit's runtime
// and storage tiers: step counts, per-operator step duration, and LSM I/O
// and compaction counters, grounded on the teacher's REDMetrics shape
// (pkg/observability/metrics.go).
type CircuitMetrics struct {
	stepsTotal      metric.Int64Counter
	stepDuration    metric.Float64Histogram
	lsmBytesWritten metric.Int64Counter
	lsmBytesRead    metric.Int64Counter
	compactions     metric.Int64Counter
}

// NewCircuitMetrics creates the circuit/storage instruments from mt.
func NewCircuitMetrics(mt metric.Meter) (*CircuitMetrics, error) {
	stepsTotal, err := mt.Int64Counter(metricCircuitSteps,
		metric.WithDescription("Total number of circuit steps executed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCircuitSteps, err)
	}

	stepDuration, err := mt.Float64Histogram(metricOperatorDuration,
		metric.WithDescription("Per-operator Step duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stepDurationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOperatorDuration, err)
	}

	bytesWritten, err := mt.Int64Counter(metricLSMBytesWritten,
		metric.WithDescription("Bytes written to the LSM backend"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLSMBytesWritten, err)
	}

	bytesRead, err := mt.Int64Counter(metricLSMBytesRead,
		metric.WithDescription("Bytes read from the LSM backend"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLSMBytesRead, err)
	}

	compactions, err := mt.Int64Counter(metricCompactions,
		metric.WithDescription("Total number of LSM compactions run"),
		metric.WithUnit("{compaction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCompactions, err)
	}

	return &CircuitMetrics{
		stepsTotal:      stepsTotal,
		stepDuration:    stepDuration,
		lsmBytesWritten: bytesWritten,
		lsmBytesRead:    bytesRead,
		compactions:     compactions,
	}, nil
}

// RecordCircuitStep records one completed Handle.Step call.
func (cm *CircuitMetrics) RecordCircuitStep(ctx context.Context) {
	cm.stepsTotal.Add(ctx, 1)
}

// RecordOperatorStep records a single node's Step duration within a circuit
// step, labeled by node name.
func (cm *CircuitMetrics) RecordOperatorStep(ctx context.Context, node string, d time.Duration) {
	cm.stepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrNode, node)))
}

// RecordBytesWritten adds n to the LSM bytes-written counter.
func (cm *CircuitMetrics) RecordBytesWritten(ctx context.Context, n int64) {
	if n <= 0 {
		return
	}

	cm.lsmBytesWritten.Add(ctx, n)
}

// RecordBytesRead adds n to the LSM bytes-read counter.
func (cm *CircuitMetrics) RecordBytesRead(ctx context.Context, n int64) {
	if n <= 0 {
		return
	}

	cm.lsmBytesRead.Add(ctx, n)
}

// RecordCompaction records one completed compaction run.
func (cm *CircuitMetrics) RecordCompaction(ctx context.Context) {
	cm.compactions.Add(ctx, 1)
}
