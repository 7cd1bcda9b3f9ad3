package temporal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelknet/dbspgo/pkg/izset"
	"github.com/nelknet/dbspgo/pkg/storage/lsm"
	"github.com/nelknet/dbspgo/pkg/storage/temporal"
	"github.com/nelknet/dbspgo/pkg/zset"
)

func openTrace(t *testing.T) *temporal.Trace[string, int64] {
	t.Helper()

	tr, err := temporal.Open[string, int64](t.TempDir(), lsm.StringInt64Codec{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = tr.Dispose() })

	return tr
}

func weightFor(z *zset.ZSet[izset.Pair[string, int64]], k string, v int64) zset.Weight {
	w, _ := z.TryFind(izset.Pair[string, int64]{Key: k, Val: v})

	return w
}

func TestQueryAtTimeSumsBatchesUpToT(t *testing.T) {
	t.Parallel()

	tr := openTrace(t)

	require.NoError(t, tr.InsertBatch(1, []temporal.Triple[string, int64]{{Key: "a", Val: 1, Weight: 1}}))
	require.NoError(t, tr.InsertBatch(2, []temporal.Triple[string, int64]{{Key: "b", Val: 2, Weight: 1}}))
	require.NoError(t, tr.InsertBatch(3, []temporal.Triple[string, int64]{{Key: "a", Val: 1, Weight: -1}}))

	at1, err := tr.QueryAtTime(1)
	require.NoError(t, err)
	assert.Equal(t, zset.Weight(1), weightFor(at1, "a", 1))
	assert.Equal(t, 1, at1.Len())

	at2, err := tr.QueryAtTime(2)
	require.NoError(t, err)
	assert.Equal(t, 2, at2.Len())

	at3, err := tr.QueryAtTime(3)
	require.NoError(t, err)
	assert.False(t, at3.ContainsKey(izset.Pair[string, int64]{Key: "a", Val: 1}))
	assert.Equal(t, 1, at3.Len())
}

func TestInsertBatchRejectsNonMonotonicTime(t *testing.T) {
	t.Parallel()

	tr := openTrace(t)

	require.NoError(t, tr.InsertBatch(5, []temporal.Triple[string, int64]{{Key: "a", Val: 1, Weight: 1}}))

	err := tr.InsertBatch(3, []temporal.Triple[string, int64]{{Key: "b", Val: 1, Weight: 1}})
	require.Error(t, err)

	var nonMonotonic *temporal.ErrNonMonotonicInsert
	assert.ErrorAs(t, err, &nonMonotonic)
}

func TestQueryTimeRangeReturnsBucketsInOrder(t *testing.T) {
	t.Parallel()

	tr := openTrace(t)

	require.NoError(t, tr.InsertBatch(1, []temporal.Triple[string, int64]{{Key: "a", Val: 1, Weight: 1}}))
	require.NoError(t, tr.InsertBatch(2, []temporal.Triple[string, int64]{{Key: "b", Val: 1, Weight: 1}}))
	require.NoError(t, tr.InsertBatch(5, []temporal.Triple[string, int64]{{Key: "c", Val: 1, Weight: 1}}))

	buckets, err := tr.QueryTimeRange(1, 2)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, int64(1), buckets[0].Time)
	assert.Equal(t, int64(2), buckets[1].Time)
}

func TestCompactPreservesQueryAtTimeAboveThreshold(t *testing.T) {
	t.Parallel()

	tr := openTrace(t)

	require.NoError(t, tr.InsertBatch(1, []temporal.Triple[string, int64]{{Key: "a", Val: 1, Weight: 2}}))
	require.NoError(t, tr.InsertBatch(2, []temporal.Triple[string, int64]{{Key: "a", Val: 1, Weight: 3}}))
	require.NoError(t, tr.InsertBatch(4, []temporal.Triple[string, int64]{{Key: "b", Val: 1, Weight: 1}}))

	before, err := tr.QueryAtTime(4)
	require.NoError(t, err)

	require.NoError(t, tr.Compact(2))

	after, err := tr.QueryAtTime(4)
	require.NoError(t, err)

	assert.True(t, zset.Equal(before, after))

	atCompactionPoint, err := tr.QueryAtTime(2)
	require.NoError(t, err)
	assert.Equal(t, zset.Weight(5), weightFor(atCompactionPoint, "a", 1))
}

func TestAdvanceFrontierDoesNotRejectLowInserts(t *testing.T) {
	t.Parallel()

	tr := openTrace(t)

	require.NoError(t, tr.InsertBatch(10, []temporal.Triple[string, int64]{{Key: "a", Val: 1, Weight: 1}}))
	tr.AdvanceFrontier(100)

	require.NoError(t, tr.InsertBatch(50, []temporal.Triple[string, int64]{{Key: "b", Val: 1, Weight: 1}}))

	assert.Equal(t, int64(100), tr.Frontier())
}
