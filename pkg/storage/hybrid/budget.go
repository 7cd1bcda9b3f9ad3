// Package hybrid implements the hybrid memory/disk storage tier (spec.md
// §4.3.4): small batches are buffered in memory and spilled to an
// storage/lsm backend once a size threshold is crossed, with reads merging
// buffered and disk-resident weight for the same (K,V).
package hybrid

const percentDivisor = 100

// DefaultWriteBufferPercent/DefaultBlockCachePercent are the fallback split
// used by PlanSpill when the caller supplies no WriteBufferSize/
// BlockCacheSize hints, mirroring the teacher's budget/solver.go proportional
// allocation style (there: 60/30/10/5 across caches/workers/buffers/slack).
const (
	DefaultWriteBufferPercent = 40
	DefaultBlockCachePercent  = 60
)

// SpillBudget is the result of PlanSpill: how many bytes the write buffer
// and block cache may each use, and the total spill threshold they were
// derived from.
type SpillBudget struct {
	WriteBufferBytes int64
	BlockCacheBytes  int64
	SpillLimitBytes  int64
}

// PlanSpill splits SpillThreshold·MaxMemoryBytes between the write buffer
// and the block cache, using writeBufferHint/blockCacheHint (the
// config.StorageConfig WriteBufferSize/BlockCacheSize fields) as proportional
// weights when both are positive, falling back to the default percentages
// otherwise. This is the small proportional solver SPEC_FULL.md calls for,
// adapted from the teacher's budget package's "allocate available budget
// proportionally across competing consumers" shape
// (EstimateMemoryUsage/NativeLimitsForBudget), generalized from the
// teacher's fixed worker/cache/buffer categories to this tier's two.
func PlanSpill(maxMemoryBytes int64, spillThreshold float64, writeBufferHint, blockCacheHint int64) SpillBudget {
	if spillThreshold < 0 {
		spillThreshold = 0
	}

	if spillThreshold > 1 {
		spillThreshold = 1
	}

	spillLimit := int64(float64(maxMemoryBytes) * spillThreshold)
	if spillLimit < 0 {
		spillLimit = 0
	}

	totalHint := writeBufferHint + blockCacheHint

	var writeBuffer int64
	if writeBufferHint <= 0 || blockCacheHint <= 0 {
		writeBuffer = spillLimit * DefaultWriteBufferPercent / percentDivisor
	} else {
		writeBuffer = spillLimit * writeBufferHint / totalHint
	}

	return SpillBudget{
		WriteBufferBytes: writeBuffer,
		BlockCacheBytes:  spillLimit - writeBuffer,
		SpillLimitBytes:  spillLimit,
	}
}

// SpillCoordinator decides whether an individual batch is large enough to
// force an immediate spill regardless of accumulated buffer size
// (spec.md §4.3.4 condition (b)).
type SpillCoordinator interface {
	ShouldSpill(batchBytes int64) bool
}

// ThresholdCoordinator is the default SpillCoordinator: spill whenever a
// single batch is at least threshold bytes.
type ThresholdCoordinator struct {
	Threshold int64
}

// ShouldSpill implements SpillCoordinator.
func (c ThresholdCoordinator) ShouldSpill(batchBytes int64) bool {
	return c.Threshold > 0 && batchBytes >= c.Threshold
}
