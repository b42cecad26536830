package eval

import "math"

// BucketScore is the derived precision/recall/F statistic for one bucket.
// All ratios are zero-guarded: an undefined ratio is defined as 0.
type BucketScore struct {
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F         float64 `json:"f"`
}

func scoreFromCounts(c Counts) BucketScore {
	s := BucketScore{TP: c.TP, FP: c.FP, FN: c.FN}
	if c.TP+c.FP > 0 {
		s.Precision = float64(c.TP) / float64(c.TP+c.FP)
	}
	if c.TP+c.FN > 0 {
		s.Recall = float64(c.TP) / float64(c.TP+c.FN)
	}
	if s.Precision+s.Recall > 0 {
		s.F = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// SetupResult is the final statistic of one setup. Scores are micro-averaged:
// counts are summed over the whole dataset before the ratios are computed, so
// frames with few obstacles are not over-weighted.
type SetupResult struct {
	Buckets [numBuckets]BucketScore
}

// Finalize derives the per-bucket scores from the accumulated counts.
func Finalize(t *ConfusionTally) SetupResult {
	r := SetupResult{}
	for b := range t.Buckets {
		r.Buckets[b] = scoreFromCounts(t.Buckets[b])
	}
	return r
}

// Overall returns the all-sizes score, which is the setup's headline F.
func (r *SetupResult) Overall() BucketScore {
	return r.Buckets[BucketAll]
}

// FScores returns (F_all, F_small, F_medium, F_large), the published
// per-setup result tuple.
func (r *SetupResult) FScores() [4]float64 {
	return [4]float64{
		r.Buckets[BucketAll].F,
		r.Buckets[BucketSmall].F,
		r.Buckets[BucketMedium].F,
		r.Buckets[BucketLarge].F,
	}
}

// scoreTolerance is the floating-point tolerance within which two challenge
// scores are considered tied.
const scoreTolerance = 1e-9

// ChallengeResult is the four-number challenge summary.
type ChallengeResult struct {
	FAvg    float64 `json:"f_avg"`
	FSetup1 float64 `json:"f_setup1"`
	FSetup2 float64 `json:"f_setup2"`
	FSetup3 float64 `json:"f_setup3"`
}

// ChallengeScore computes the final ranking number: the mean of the three
// setups' overall F-scores.
func ChallengeScore(s1, s2, s3 SetupResult) ChallengeResult {
	f1 := s1.Overall().F
	f2 := s2.Overall().F
	f3 := s3.Overall().F
	return ChallengeResult{
		FAvg:    (f1 + f2 + f3) / 3,
		FSetup1: f1,
		FSetup2: f2,
		FSetup3: f3,
	}
}

// Better implements the challenge ranking contract: higher F_avg wins, and a
// tie (within floating-point tolerance) is broken by the Setup-1 overall F.
func (c ChallengeResult) Better(o ChallengeResult) bool {
	if math.Abs(c.FAvg-o.FAvg) > scoreTolerance {
		return c.FAvg > o.FAvg
	}
	return c.FSetup1 > o.FSetup1
}
