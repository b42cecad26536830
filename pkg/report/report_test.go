package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/eval"
)

func sampleEvaluation() *eval.Evaluation {
	mkRun := func(setup eval.Setup, tp, fp, fn int) *eval.SetupRun {
		tally := eval.NewTally()
		tally.Add(&eval.MatchOutcome{
			TP: repeatPairs(eval.BucketSmall, tp),
			FP: repeatDets(eval.BucketSmall, fp),
			FN: repeatGTs(fn),
		})
		return &eval.SetupRun{Setup: setup, Tally: *tally, Result: eval.Finalize(tally)}
	}
	ev := &eval.Evaluation{Runs: map[eval.Setup]*eval.SetupRun{
		eval.Setup1: mkRun(eval.Setup1, 3, 1, 0),
		eval.Setup2: mkRun(eval.Setup2, 2, 0, 2),
		eval.Setup3: mkRun(eval.Setup3, 0, 0, 0),
	}}
	ev.Challenge = eval.ChallengeScore(
		ev.Runs[eval.Setup1].Result,
		ev.Runs[eval.Setup2].Result,
		ev.Runs[eval.Setup3].Result,
	)
	return ev
}

func repeatPairs(b eval.SizeBucket, n int) []eval.MatchedPair {
	pairs := make([]eval.MatchedPair, n)
	for i := range pairs {
		pairs[i] = eval.MatchedPair{Det: i, GT: i, Bucket: b, Coverage: 1}
	}
	return pairs
}

func repeatDets(b eval.SizeBucket, n int) []eval.UnmatchedDetection {
	dets := make([]eval.UnmatchedDetection, n)
	for i := range dets {
		dets[i] = eval.UnmatchedDetection{Det: i + 100, Bucket: b}
	}
	return dets
}

func repeatGTs(n int) []eval.UnmatchedTruth {
	gts := make([]eval.UnmatchedTruth, n)
	for i := range gts {
		gts[i] = eval.UnmatchedTruth{GT: i + 200, Bucket: eval.BucketSmall}
	}
	return gts
}

func TestReportJSONLayout(t *testing.T) {
	r, err := New(sampleEvaluation())
	require.NoError(t, err)

	filename := filepath.Join(t.TempDir(), "evaluation_results.json")
	require.NoError(t, r.Save(filename))

	loaded, err := Load(filename)
	require.NoError(t, err)
	require.Equal(t, r, loaded)

	// The server-side parser depends on these exact keys
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	parsed := map[string][]float64{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	for _, key := range []string{"setup1", "setup2", "setup3"} {
		require.Contains(t, parsed, key)
		require.Len(t, parsed[key], 4)
	}

	// Setup 1: all small, P=3/4, R=1, F=6/7
	require.InDelta(t, 6.0/7.0, parsed["setup1"][0], 1e-9)
	require.InDelta(t, 6.0/7.0, parsed["setup1"][1], 1e-9)
	require.Equal(t, 0.0, parsed["setup1"][2])
	require.Equal(t, 0.0, parsed["setup1"][3])
}

func TestReportMissingSetup(t *testing.T) {
	ev := sampleEvaluation()
	delete(ev.Runs, eval.Setup2)
	_, err := New(ev)
	require.Error(t, err)
}

func TestLoadRejectsTruncated(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "evaluation_results.json")
	require.NoError(t, (&Report{
		Setup1: []float64{1, 1, 1},
		Setup2: []float64{0, 0, 0, 0},
		Setup3: []float64{0, 0, 0, 0},
	}).Save(filename))
	_, err := Load(filename)
	require.Error(t, err)
}

func TestWriteSummaryAndChallenge(t *testing.T) {
	ev := sampleEvaluation()
	r, err := New(ev)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	r.WriteSummary(buf)
	require.Contains(t, buf.String(), "Results: F_all F_small F_medium F_large")
	require.Contains(t, buf.String(), "Setup_1: 0.857 0.857 0.000 0.000")

	buf.Reset()
	WriteChallenge(buf, ev.Challenge)
	require.Equal(t, "Challenge results (F_avg, F_s1, F_s2, F_s3):\n0.508 0.857 0.667 0.000\n", buf.String())
}
