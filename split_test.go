package negentropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEngineWithItems(t *testing.T, idSize int, n int) *Engine {
	t.Helper()

	eng, err := New(idSize, 0)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		id := make([]byte, idSize)
		id[0] = byte(i)
		id[1] = byte(i >> 8)
		require.NoError(t, eng.Add(uint64(i), id))
	}

	require.NoError(t, eng.Seal())

	return eng
}

func Test_SplitRange_SmallRangeEmitsSingleIDList(t *testing.T) {
	t.Parallel()

	eng := makeEngineWithItems(t, 16, 10)

	var outputs []outputRange
	eng.splitRange(0, len(eng.store.items), lowerSentinelBound(), upperSentinelBound(), &outputs)

	require.Len(t, outputs, 1)

	m, rest, err := decodeMode(outputs[0].payload)
	require.NoError(t, err)
	assert.Equal(t, modeIDList, m)

	n, rest, err := decodeVarInt(rest)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)
	assert.Len(t, rest, 10*16)
}

func Test_SplitRange_LargeRangeEmitsSixteenFingerprintBuckets(t *testing.T) {
	t.Parallel()

	eng := makeEngineWithItems(t, 16, 1000)

	var outputs []outputRange
	eng.splitRange(0, len(eng.store.items), lowerSentinelBound(), upperSentinelBound(), &outputs)

	require.Len(t, outputs, buckets)

	for _, o := range outputs {
		m, rest, err := decodeMode(o.payload)
		require.NoError(t, err)
		assert.Equal(t, modeFingerprint, m)
		assert.Len(t, rest, 16)
	}
}

func Test_SplitRange_BucketBoundsAreContiguousAndCoverWholeRange(t *testing.T) {
	t.Parallel()

	eng := makeEngineWithItems(t, 16, 257)

	lower := lowerSentinelBound()
	upper := upperSentinelBound()

	var outputs []outputRange
	eng.splitRange(0, len(eng.store.items), lower, upper, &outputs)

	require.Len(t, outputs, buckets)
	assert.Zero(t, outputs[0].start.compareBound(lower))
	assert.Zero(t, outputs[len(outputs)-1].end.compareBound(upper))

	for i := 1; i < len(outputs); i++ {
		assert.Zero(t, outputs[i].start.compareBound(outputs[i-1].end), "bucket %d should start exactly where %d ended", i, i-1)
	}
}

func Test_SplitRange_BucketSizesDistributeRemainderToFirstBuckets(t *testing.T) {
	t.Parallel()

	// 33 items over 16 buckets: 1 extra item each in the first (33 mod 16) = 1 bucket.
	eng := makeEngineWithItems(t, 16, 33)

	var outputs []outputRange
	eng.splitRange(0, len(eng.store.items), lowerSentinelBound(), upperSentinelBound(), &outputs)

	require.Len(t, outputs, buckets)

	itemsPerBucket := 33 / buckets
	bucketsWithExtra := 33 % buckets
	assert.Equal(t, 1, bucketsWithExtra)
	assert.Equal(t, 2, itemsPerBucket)

	// Item i has timestamp i and every timestamp is distinct, so each bucket's
	// start and end bounds carry the index of its first item and of the next
	// bucket's first item; the final bucket ends at the upper sentinel.
	want := []int{3, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	for i, o := range outputs {
		endIdx := 33
		if i < len(outputs)-1 {
			endIdx = int(o.end.timestamp)
		}

		assert.Equal(t, want[i], endIdx-int(o.start.timestamp), "bucket %d size", i)
	}
}

// Property: XOR fingerprints are invariant under permuting items within a bucket.
func Test_Fingerprint_IsCommutativeUnderPermutation(t *testing.T) {
	t.Parallel()

	ids := [][]byte{
		{0x01, 0x02, 0x03, 0x04},
		{0xaa, 0xbb, 0xcc, 0xdd},
		{0x10, 0x20, 0x30, 0x40},
		{0xff, 0x00, 0xff, 0x00},
	}

	orderA := []int{0, 1, 2, 3}
	orderB := []int{3, 1, 0, 2}

	digestA := make([]byte, 4)
	for _, i := range orderA {
		xorInto(digestA, ids[i])
	}

	digestB := make([]byte, 4)
	for _, i := range orderB {
		xorInto(digestB, ids[i])
	}

	assert.Equal(t, digestA, digestB)
}
