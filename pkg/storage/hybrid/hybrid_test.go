package hybrid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelknet/dbspgo/pkg/storage/hybrid"
	"github.com/nelknet/dbspgo/pkg/storage/lsm"
	"github.com/nelknet/dbspgo/pkg/zset"
)

func fixedSizer(d lsm.Delta[int64, int64]) int64 { _ = d; return 16 }

func openHybrid(t *testing.T, budget hybrid.SpillBudget, coord hybrid.SpillCoordinator) *hybrid.Backend[int64, int64] {
	t.Helper()

	disk, err := lsm.OpenLevelBackend[int64, int64](t.TempDir(), lsm.Int64Int64Codec{})
	require.NoError(t, err)

	b := hybrid.Open[int64, int64](disk, fixedSizer, coord, budget)
	t.Cleanup(func() { _ = b.Dispose() })

	return b
}

func TestGetSeesBufferedWriteBeforeFlush(t *testing.T) {
	t.Parallel()

	b := openHybrid(t, hybrid.SpillBudget{WriteBufferBytes: 1 << 20}, nil)

	require.NoError(t, b.StoreBatch([]lsm.Delta[int64, int64]{{Key: 1, Val: 10, Weight: 4}}))

	v, w, ok, err := b.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, zset.Weight(4), w)
}

func TestGetMergesBufferedAndFlushedWeight(t *testing.T) {
	t.Parallel()

	b := openHybrid(t, hybrid.SpillBudget{WriteBufferBytes: 1 << 20}, nil)

	require.NoError(t, b.StoreBatchWithFlush([]lsm.Delta[int64, int64]{{Key: 1, Val: 10, Weight: 4}}))
	require.NoError(t, b.StoreBatch([]lsm.Delta[int64, int64]{{Key: 1, Val: 10, Weight: 3}}))

	v, w, ok, err := b.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, zset.Weight(7), w)
}

func TestBufferAutoFlushesPastWriteBufferBudget(t *testing.T) {
	t.Parallel()

	b := openHybrid(t, hybrid.SpillBudget{WriteBufferBytes: 20}, nil)

	require.NoError(t, b.StoreBatch([]lsm.Delta[int64, int64]{
		{Key: 1, Val: 10, Weight: 1},
		{Key: 1, Val: 11, Weight: 1},
	}))

	assert.Equal(t, int64(2), b.GetStats().EntriesWritten)

	iter, err := b.GetRangeIterator(ptr(int64(1)), ptr(int64(1)))
	require.NoError(t, err)

	defer iter.Release()

	var got []int64
	for iter.Next() {
		got = append(got, iter.Entry().Val)
	}
	require.NoError(t, iter.Error())

	assert.ElementsMatch(t, []int64{10, 11}, got)
}

func TestSpillCoordinatorForcesFlushRegardlessOfBudget(t *testing.T) {
	t.Parallel()

	coord := hybrid.ThresholdCoordinator{Threshold: 1}
	b := openHybrid(t, hybrid.SpillBudget{WriteBufferBytes: 1 << 30}, coord)

	require.NoError(t, b.StoreBatch([]lsm.Delta[int64, int64]{{Key: 1, Val: 10, Weight: 1}}))

	assert.Equal(t, int64(1), b.GetStats().EntriesWritten)

	v, w, ok, err := b.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, zset.Weight(1), w)
}

func TestGetIteratorMergesAndOmitsNetZero(t *testing.T) {
	t.Parallel()

	b := openHybrid(t, hybrid.SpillBudget{WriteBufferBytes: 1 << 20}, nil)

	require.NoError(t, b.StoreBatchWithFlush([]lsm.Delta[int64, int64]{
		{Key: 1, Val: 10, Weight: 1},
		{Key: 1, Val: 20, Weight: 1},
		{Key: 2, Val: 99, Weight: 1},
	}))
	require.NoError(t, b.StoreBatch([]lsm.Delta[int64, int64]{{Key: 1, Val: 10, Weight: -1}}))

	iter, err := b.GetIterator()
	require.NoError(t, err)

	defer iter.Release()

	var got []struct{ K, V int64 }
	for iter.Next() {
		e := iter.Entry()
		got = append(got, struct{ K, V int64 }{e.Key, e.Val})
	}
	require.NoError(t, iter.Error())

	assert.Equal(t, []struct{ K, V int64 }{{1, 20}, {2, 99}}, got)
}

func TestFlushIsIdempotentOnEmptyBuffer(t *testing.T) {
	t.Parallel()

	b := openHybrid(t, hybrid.SpillBudget{WriteBufferBytes: 1 << 20}, nil)

	require.NoError(t, b.Flush())
	require.NoError(t, b.Flush())
}

func TestCompactFlushesBufferedWritesFirst(t *testing.T) {
	t.Parallel()

	b := openHybrid(t, hybrid.SpillBudget{WriteBufferBytes: 1 << 20}, nil)

	require.NoError(t, b.StoreBatch([]lsm.Delta[int64, int64]{{Key: 1, Val: 10, Weight: 1}}))
	require.NoError(t, b.Compact())

	assert.Equal(t, int64(1), b.GetStats().CompactionCount)
	assert.Equal(t, int64(1), b.GetStats().EntriesWritten)

	v, w, ok, err := b.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, zset.Weight(1), w)
}

func ptr[T any](v T) *T { return &v }

func TestPlanSpillSplitsByHintProportion(t *testing.T) {
	t.Parallel()

	budget := hybrid.PlanSpill(1000, 0.5, 30, 70)

	assert.Equal(t, int64(500), budget.SpillLimitBytes)
	assert.Equal(t, int64(150), budget.WriteBufferBytes)
	assert.Equal(t, int64(350), budget.BlockCacheBytes)
}

func TestPlanSpillFallsBackToDefaultPercentWithoutHints(t *testing.T) {
	t.Parallel()

	budget := hybrid.PlanSpill(1000, 1, 0, 0)

	assert.Equal(t, int64(1000), budget.SpillLimitBytes)
	assert.Equal(t, int64(400), budget.WriteBufferBytes)
	assert.Equal(t, int64(600), budget.BlockCacheBytes)
}

func TestPlanSpillClampsThresholdToUnitRange(t *testing.T) {
	t.Parallel()

	over := hybrid.PlanSpill(100, 5, 0, 0)
	assert.Equal(t, int64(100), over.SpillLimitBytes)

	under := hybrid.PlanSpill(100, -1, 0, 0)
	assert.Equal(t, int64(0), under.SpillLimitBytes)
}

func TestThresholdCoordinatorShouldSpill(t *testing.T) {
	t.Parallel()

	c := hybrid.ThresholdCoordinator{Threshold: 100}

	assert.False(t, c.ShouldSpill(50))
	assert.True(t, c.ShouldSpill(100))
	assert.True(t, c.ShouldSpill(150))
}
