package diva_test

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n3slami/diva-go"
)

func sortedUint64Keys(n int, seed int64) []uint64 {
	rng := rand.New(rand.NewSource(seed))
	keys := make([]uint64, n)
	seen := make(map[uint64]bool, n)
	for i := range keys {
		for {
			k := rng.Uint64()
			if !seen[k] {
				seen[k] = true
				keys[i] = k
				break
			}
		}
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// TestNoFalseNegativesPoint is property P1: every inserted key must answer
// point_query = true.
func TestNoFalseNegativesPoint(t *testing.T) {
	f := diva.NewFixedWidth(8, 42, 0.95)
	keys := sortedUint64Keys(2000, 1)
	for _, k := range keys {
		f.InsertUint64(k)
	}
	for _, k := range keys {
		require.True(t, f.PointQueryUint64(k), "key %d must be found", k)
	}
}

// TestNoFalseNegativesRange is property P2: any [l, r] bracketing an
// inserted key must answer range_query = true.
func TestNoFalseNegativesRange(t *testing.T) {
	f := diva.NewFixedWidth(8, 42, 0.95)
	keys := sortedUint64Keys(500, 2)
	for _, k := range keys {
		f.InsertUint64(k)
	}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		k := keys[rng.Intn(len(keys))]
		lo, hi := k, k+uint64(rng.Intn(1<<16))
		if rng.Intn(2) == 0 && k > uint64(rng.Intn(1<<16)) {
			lo = k - uint64(rng.Intn(1<<16))
			hi = k
		}
		require.True(t, f.RangeQueryUint64(lo, hi))
	}
}

// TestBulkLoadEquivalence is property P4: bulk loading and one-by-one
// insertion with the same seed must answer every query identically.
func TestBulkLoadEquivalence(t *testing.T) {
	keys := sortedUint64Keys(1300, 4)

	bulk, err := diva.NewFixedWidthBulk(8, keys, 7, 0.95)
	require.NoError(t, err)

	incremental := diva.NewFixedWidth(8, 7, 0.95)
	for _, k := range keys {
		incremental.InsertUint64(k)
	}

	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 2000; i++ {
		var probe uint64
		if i < len(keys) {
			probe = keys[i]
		} else {
			probe = rng.Uint64()
		}
		require.Equal(t, incremental.PointQueryUint64(probe), bulk.PointQueryUint64(probe))
	}
}

// TestDeleteReinsertIdentity is property P5: delete(k); insert(k) must leave
// every probe's answer unchanged.
func TestDeleteReinsertIdentity(t *testing.T) {
	f := diva.NewFixedWidth(10, 9, 0.95)
	keys := sortedUint64Keys(800, 6)
	for _, k := range keys {
		f.InsertUint64(k)
	}

	probes := append([]uint64(nil), keys...)
	rng := rand.New(rand.NewSource(10))
	for i := 0; i < 500; i++ {
		probes = append(probes, rng.Uint64())
	}
	before := make([]bool, len(probes))
	for i, p := range probes {
		before[i] = f.PointQueryUint64(p)
	}

	for i := 0; i < 50; i++ {
		k := keys[rng.Intn(len(keys))]
		f.DeleteUint64(k)
		f.InsertUint64(k)
	}

	for i, p := range probes {
		require.Equal(t, before[i], f.PointQueryUint64(p), "probe %d changed answer", p)
	}
}

// TestShrinkMonotonicity is property P6: shrinking the infix size may only
// add false positives, never remove a true positive.
func TestShrinkMonotonicity(t *testing.T) {
	f := diva.NewFixedWidth(10, 11, 0.95)
	keys := sortedUint64Keys(600, 7)
	for _, k := range keys {
		f.InsertUint64(k)
	}

	probes := append([]uint64(nil), keys...)
	rng := rand.New(rand.NewSource(12))
	for i := 0; i < 500; i++ {
		probes = append(probes, rng.Uint64())
	}
	before := make([]bool, len(probes))
	for i, p := range probes {
		before[i] = f.PointQueryUint64(p)
	}

	f.ShrinkInfixSize(8)

	for i, p := range probes {
		if before[i] {
			require.True(t, f.PointQueryUint64(p), "shrink must not drop a true positive for %d", p)
		}
	}
	for _, k := range keys {
		require.True(t, f.PointQueryUint64(k))
	}
}

// TestSerializeRoundTrip is property P7: deserialize(serialize(f)) must
// answer identically to f on every probe.
func TestSerializeRoundTrip(t *testing.T) {
	f := diva.NewFixedWidth(9, 13, 0.9)
	keys := sortedUint64Keys(700, 8)
	for _, k := range keys {
		f.InsertUint64(k)
	}

	blob, err := f.Serialize()
	require.NoError(t, err)

	g, err := diva.Deserialize(blob)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(14))
	for i := 0; i < 1000; i++ {
		var probe uint64
		if i%2 == 0 {
			probe = keys[rng.Intn(len(keys))]
		} else {
			probe = rng.Uint64()
		}
		require.Equal(t, f.PointQueryUint64(probe), g.PointQueryUint64(probe))
	}
	require.Equal(t, f.InfixSize(), g.InfixSize())
}

// TestBulkLoadStreaming checks that the streaming bulk-load session answers
// queries for every fed key, matching the Feed/Finish API of spec.md §6.1.
func TestBulkLoadStreaming(t *testing.T) {
	f := diva.NewFixedWidth(8, 15, 0.95)
	keys := sortedUint64Keys(2500, 16)
	stream := f.NewBulkLoadStream()
	for _, k := range keys {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], k)
		stream.Feed(buf[:])
	}
	stream.Finish()

	for _, k := range keys {
		require.True(t, f.PointQueryUint64(k))
	}
}

// TestRangeQueryCorrelated is concrete scenario 5: range queries built
// around actually-inserted keys must always report a hit.
func TestRangeQueryCorrelated(t *testing.T) {
	f := diva.NewFixedWidth(8, 17, 0.95)
	keys := sortedUint64Keys(10000, 18)
	for _, k := range keys {
		f.InsertUint64(k)
	}

	rng := rand.New(rand.NewSource(19))
	for i := 0; i < 2000; i++ {
		l := keys[rng.Intn(len(keys))]
		r := l + uint64(rng.Intn(1<<20))
		require.True(t, f.RangeQueryUint64(l, r))
	}
}

// TestUnsortedBulkLoadRejected is an input-violation case (spec.md §7):
// NewVariableWidthBulk must fail on an unsorted key slice rather than
// silently mutate state.
func TestUnsortedBulkLoadRejected(t *testing.T) {
	_, err := diva.NewVariableWidthBulk(8, [][]byte{[]byte("b"), []byte("a")}, 1, 0.95)
	require.Error(t, err)
}

func TestStats(t *testing.T) {
	f := diva.NewFixedWidth(8, 20, 0.95)
	keys := sortedUint64Keys(300, 21)
	for _, k := range keys {
		f.InsertUint64(k)
	}
	st := f.Stats()
	// Some inserted keys take the split path and become boundaries rather
	// than store elements, so Elements is bounded by, not equal to, the
	// insert count.
	require.LessOrEqual(t, st.Elements, uint64(len(keys)))
	require.Greater(t, st.Boundaries, uint64(0))
	require.Greater(t, st.Bytes, uint64(0))
	require.NotEmpty(t, st.String())
}
