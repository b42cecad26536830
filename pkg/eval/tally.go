package eval

// Counts is a (TP, FP, FN) triple for one size bucket.
type Counts struct {
	TP int
	FP int
	FN int
}

// ConfusionTally accumulates per-frame match outcomes into per-bucket
// confusion counts. Accumulation is additive, hence commutative and
// associative: frames and sequences can be folded in any order (or merged
// across workers) without changing the final counts.
type ConfusionTally struct {
	Buckets [numBuckets]Counts
}

func NewTally() *ConfusionTally {
	return &ConfusionTally{}
}

// Add folds one frame's outcome into the tally. Every bucketed count also
// feeds the "all" pseudo-bucket; unbucketed false positives feed only "all".
func (t *ConfusionTally) Add(o *MatchOutcome) {
	for _, p := range o.TP {
		t.Buckets[BucketAll].TP++
		if p.Bucket != BucketAll {
			t.Buckets[p.Bucket].TP++
		}
	}
	for _, d := range o.FP {
		t.Buckets[BucketAll].FP++
		if d.Bucket != BucketAll {
			t.Buckets[d.Bucket].FP++
		}
	}
	for _, g := range o.FN {
		t.Buckets[BucketAll].FN++
		if g.Bucket != BucketAll {
			t.Buckets[g.Bucket].FN++
		}
	}
}

// Merge adds another tally's counts into this one.
func (t *ConfusionTally) Merge(o *ConfusionTally) {
	for b := range t.Buckets {
		t.Buckets[b].TP += o.Buckets[b].TP
		t.Buckets[b].FP += o.Buckets[b].FP
		t.Buckets[b].FN += o.Buckets[b].FN
	}
}

func (t *ConfusionTally) Counts(b SizeBucket) Counts {
	return t.Buckets[b]
}
