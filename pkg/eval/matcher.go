package eval

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mask"
)

// MatchedPair is a committed detection/ground-truth correspondence.
// Det and GT index into the MatchFrame input slices.
type MatchedPair struct {
	Det      int
	GT       int
	Bucket   SizeBucket
	Coverage float32
}

// UnmatchedDetection is a false positive. Bucket is the size bucket of the
// best-overlapping rejected ground truth, or BucketAll when no ground truth
// overlaps the detection at all.
type UnmatchedDetection struct {
	Det    int
	Bucket SizeBucket
}

// UnmatchedTruth is a false negative.
type UnmatchedTruth struct {
	GT     int
	Bucket SizeBucket
}

// MatchOutcome is the per-frame confusion breakdown for one setup. TP, FP,
// FN, Absorbed and the Skipped lists together partition the frame's
// detections and ground truths exhaustively.
type MatchOutcome struct {
	TP []MatchedPair
	FP []UnmatchedDetection
	FN []UnmatchedTruth

	// Absorbed are detections that qualified against a large ground truth
	// that was already satisfied. They are neither true nor false positives.
	Absorbed []int

	// Detections and ground truths lying outside the validity mask (or
	// flagged ignore). Excluded from every count.
	SkippedDets []int
	SkippedGTs  []int
}

// MatchFrame computes the match outcome for one frame under one setup's
// policy. It is a pure function of its inputs. A nil mask means the whole
// frame is valid.
//
// Small and medium obstacles are matched one-to-one by greedy assignment in
// decreasing order of coverage ratio. Large obstacles are matched
// many-to-one: a single qualifying detection satisfies the obstacle, and
// further qualifying detections are absorbed rather than penalized, because
// detectors legitimately fragment large irregular obstacles (shorelines)
// into several adjacent boxes.
func MatchFrame(dets []Detection, gts []GroundTruth, m *mask.Mask, classAware bool, cfg *Config) (*MatchOutcome, error) {
	for i := range dets {
		if !dets[i].Box.IsValid() {
			return nil, &MalformedGeometryError{Kind: "detection", ID: dets[i].ID, Box: dets[i].Box}
		}
	}
	for i := range gts {
		if !gts[i].Box.IsValid() {
			return nil, &MalformedGeometryError{Kind: "annotation", ID: gts[i].ID, Box: gts[i].Box}
		}
	}

	outcome := &MatchOutcome{}

	// Restrict both sides to the validity mask
	visDet := make([]bool, len(dets))
	for i := range dets {
		visDet[i] = m == nil || !m.BboxIgnored(dets[i].Box, cfg.MaskOverlapThreshold)
		if !visDet[i] {
			outcome.SkippedDets = append(outcome.SkippedDets, i)
		}
	}
	visGT := make([]bool, len(gts))
	for i := range gts {
		visGT[i] = !gts[i].Ignore && (m == nil || !m.BboxIgnored(gts[i].Box, cfg.MaskOverlapThreshold))
		if !visGT[i] {
			outcome.SkippedGTs = append(outcome.SkippedGTs, i)
		}
	}

	// Spatial index over visible ground truths, so a frame with many
	// annotations doesn't cost a full N*M scan
	fb := flatbush.NewFlatbush[float32]()
	fbToGT := make([]int, 0, len(gts))
	for i := range gts {
		if visGT[i] {
			fbToGT = append(fbToGT, i)
		}
	}
	fb.Reserve(len(fbToGT))
	for _, i := range fbToGT {
		b := gts[i].Box
		fb.Add(b.X, b.Y, b.X2(), b.Y2())
	}
	fb.Finish()

	type pair struct {
		det, gt  int
		coverage float32
	}
	var smallMedium, large []pair

	for i := range dets {
		if !visDet[i] {
			continue
		}
		b := dets[i].Box
		for _, fbIdx := range fb.Search(b.X, b.Y, b.X2(), b.Y2()) {
			j := fbToGT[fbIdx]
			if classAware && dets[i].Class != gts[j].Class {
				continue
			}
			inter := b.IntersectionArea(gts[j].Box)
			if inter <= 0 {
				continue
			}
			coverage := inter / gts[j].PixelArea()
			p := pair{det: i, gt: j, coverage: coverage}
			if cfg.BucketForArea(gts[j].PixelArea()) == BucketLarge {
				if coverage >= cfg.CoverageThreshold {
					large = append(large, p)
				}
			} else {
				if coverage > cfg.CoverageThreshold {
					smallMedium = append(smallMedium, p)
				}
			}
		}
	}

	// Decreasing coverage, then stable ordering for reproducibility
	sortPairs := func(pairs []pair) {
		sort.Slice(pairs, func(a, b int) bool {
			if pairs[a].coverage != pairs[b].coverage {
				return pairs[a].coverage > pairs[b].coverage
			}
			if pairs[a].det != pairs[b].det {
				return pairs[a].det < pairs[b].det
			}
			return pairs[a].gt < pairs[b].gt
		})
	}
	sortPairs(smallMedium)
	sortPairs(large)

	detDone := make([]bool, len(dets)) // matched or absorbed
	gtDone := make([]bool, len(gts))

	// One-to-one greedy assignment for small and medium obstacles
	for _, p := range smallMedium {
		if detDone[p.det] || gtDone[p.gt] {
			continue
		}
		detDone[p.det] = true
		gtDone[p.gt] = true
		outcome.TP = append(outcome.TP, MatchedPair{
			Det:      p.det,
			GT:       p.gt,
			Bucket:   cfg.BucketForArea(gts[p.gt].PixelArea()),
			Coverage: p.coverage,
		})
	}

	// Many-to-one for large obstacles: the best qualifying detection commits
	// the single true positive, later qualifying detections are absorbed
	for _, p := range large {
		if gtDone[p.gt] {
			if !detDone[p.det] {
				detDone[p.det] = true
				outcome.Absorbed = append(outcome.Absorbed, p.det)
			}
			continue
		}
		if detDone[p.det] {
			continue
		}
		detDone[p.det] = true
		gtDone[p.gt] = true
		outcome.TP = append(outcome.TP, MatchedPair{
			Det:      p.det,
			GT:       p.gt,
			Bucket:   BucketLarge,
			Coverage: p.coverage,
		})
	}

	// Unmatched ground truths are misses
	for j := range gts {
		if visGT[j] && !gtDone[j] {
			outcome.FN = append(outcome.FN, UnmatchedTruth{
				GT:     j,
				Bucket: cfg.BucketForArea(gts[j].PixelArea()),
			})
		}
	}

	// Unmatched detections are false alarms, attributed to the bucket of the
	// best-overlapping (but rejected) ground truth when one exists
	for i := range dets {
		if !visDet[i] || detDone[i] {
			continue
		}
		bucket := BucketAll
		best := float32(0)
		b := dets[i].Box
		for _, fbIdx := range fb.Search(b.X, b.Y, b.X2(), b.Y2()) {
			j := fbToGT[fbIdx]
			inter := b.IntersectionArea(gts[j].Box)
			if inter <= 0 {
				continue
			}
			coverage := inter / gts[j].PixelArea()
			if coverage > best {
				best = coverage
				bucket = cfg.BucketForArea(gts[j].PixelArea())
			}
		}
		outcome.FP = append(outcome.FP, UnmatchedDetection{Det: i, Bucket: bucket})
	}

	return outcome, nil
}
