package eval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func outcomeFixture(seed int64) []*MatchOutcome {
	rng := rand.New(rand.NewSource(seed))
	outcomes := make([]*MatchOutcome, 50)
	for i := range outcomes {
		o := &MatchOutcome{}
		for j := 0; j < rng.Intn(5); j++ {
			o.TP = append(o.TP, MatchedPair{Det: j, GT: j, Bucket: SizeBucket(1 + rng.Intn(3))})
		}
		for j := 0; j < rng.Intn(4); j++ {
			o.FP = append(o.FP, UnmatchedDetection{Det: 10 + j, Bucket: SizeBucket(rng.Intn(4))})
		}
		for j := 0; j < rng.Intn(4); j++ {
			o.FN = append(o.FN, UnmatchedTruth{GT: 10 + j, Bucket: SizeBucket(1 + rng.Intn(3))})
		}
		outcomes[i] = o
	}
	return outcomes
}

func TestTallyOrderIndependence(t *testing.T) {
	outcomes := outcomeFixture(42)

	reference := NewTally()
	for _, o := range outcomes {
		reference.Add(o)
	}

	// Any permutation of the same outcomes yields identical counts
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		shuffled := append([]*MatchOutcome{}, outcomes...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		tally := NewTally()
		for _, o := range shuffled {
			tally.Add(o)
		}
		require.Equal(t, reference.Buckets, tally.Buckets)
	}
}

func TestTallyMergeEquivalentToAdd(t *testing.T) {
	outcomes := outcomeFixture(99)

	flat := NewTally()
	for _, o := range outcomes {
		flat.Add(o)
	}

	// Split across per-worker tallies and merge, in either merge order
	a, b := NewTally(), NewTally()
	for i, o := range outcomes {
		if i%2 == 0 {
			a.Add(o)
		} else {
			b.Add(o)
		}
	}
	merged := NewTally()
	merged.Merge(b)
	merged.Merge(a)
	require.Equal(t, flat.Buckets, merged.Buckets)
}

func TestTallyBucketFeeding(t *testing.T) {
	tally := NewTally()
	tally.Add(&MatchOutcome{
		TP: []MatchedPair{{Det: 0, GT: 0, Bucket: BucketSmall}},
		FP: []UnmatchedDetection{
			{Det: 1, Bucket: BucketLarge},
			{Det: 2, Bucket: BucketAll}, // unattributed: "all" only
		},
		FN: []UnmatchedTruth{{GT: 1, Bucket: BucketMedium}},
	})

	require.Equal(t, Counts{TP: 1, FP: 2, FN: 1}, tally.Counts(BucketAll))
	require.Equal(t, Counts{TP: 1}, tally.Counts(BucketSmall))
	require.Equal(t, Counts{FN: 1}, tally.Counts(BucketMedium))
	require.Equal(t, Counts{FP: 1}, tally.Counts(BucketLarge))
}
