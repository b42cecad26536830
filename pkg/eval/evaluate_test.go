package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mods"
)

const testCalibration = `%YAML:1.0
---
M1: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ 100., 0., 50., 0., 100., 50., 0., 0., 1. ]
D1: !!opencv-matrix
   rows: 1
   cols: 5
   dt: d
   data: [ 0., 0., 0., 0., 0. ]
imageSize: [ 100, 100 ]
`

// A single exhaustive sequence on a 100x100 grid. The waterline sits at
// y=10, so nearly the whole frame is valid in the sea-edge setups. One small
// ship at [40,40,20,20] with an almost identical detection, plus a second
// frame whose only detection carries a bogus class.
const testDataset = `{
	"dataset": {
		"sequences": [
			{
				"id": 1,
				"path": "/test01-00000000-00000100/frames/",
				"exhaustive": 1,
				"frames": [
					{
						"id": 1,
						"image_file_name": "0001.jpg",
						"roll": 0, "pitch": 0,
						"water_edges": [{"x_axis": [0, 99], "y_axis": [10, 10]}],
						"obstacles": [
							{"id": 1, "type": "ship", "bbox": [40, 40, 20, 20], "area": 400}
						]
					},
					{
						"id": 2,
						"image_file_name": "0002.jpg",
						"roll": 0, "pitch": 0,
						"water_edges": [{"x_axis": [0, 99], "y_axis": [10, 10]}],
						"obstacles": []
					}
				]
			}
		]
	}
}`

const testResults = `{
	"dataset": {
		"sequences": [
			{
				"id": 1,
				"frames": [
					{"id": 1, "detections": [{"id": 1, "type": "ship", "bbox": [41, 41, 19, 19]}]},
					{"id": 2, "detections": [{"id": 2, "type": "boat", "bbox": [50, 50, 5, 5]}]}
				]
			}
		]
	}
}`

func writeTestData(t *testing.T, datasetJSON, resultsJSON string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	datasetFile := filepath.Join(dir, "mods.json")
	require.NoError(t, os.WriteFile(datasetFile, []byte(datasetJSON), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "calibration"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calibration", "calibration-test01.yaml"), []byte(testCalibration), 0644))
	resultsFile := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(resultsFile, []byte(resultsJSON), 0644))
	return datasetFile, resultsFile
}

func TestEvaluateEndToEnd(t *testing.T) {
	datasetFile, resultsFile := writeTestData(t, testDataset, testResults)

	evaluation, err := LoadAndEvaluate(logs.NewTestingLog(t), datasetFile, resultsFile, nil, nil)
	require.NoError(t, err)
	require.Len(t, evaluation.Runs, 3)

	// Setups 1 and 2: the detection covers the ship at ~0.9, one clean hit
	for _, setup := range []Setup{Setup1, Setup2} {
		run := evaluation.Runs[setup]
		require.Equal(t, Counts{TP: 1}, run.Tally.Counts(BucketAll), "%v", setup)
		require.Equal(t, Counts{TP: 1}, run.Tally.Counts(BucketSmall), "%v", setup)
		require.InDelta(t, 1.0, run.Result.Overall().F, 1e-9, "%v", setup)
		// The bogus "boat" detection was rejected and reported
		require.Equal(t, 1, run.Errors.Total)
		require.Equal(t, 1, run.Errors.RejectedDetections[1])
	}

	// Setup 3: the obstacle sits beyond the danger zone, so nothing is
	// scored and every F is 0 by the zero-guard convention
	run3 := evaluation.Runs[Setup3]
	require.Equal(t, Counts{}, run3.Tally.Counts(BucketAll))
	require.Equal(t, 0.0, run3.Result.Overall().F)

	require.InDelta(t, 2.0/3.0, evaluation.Challenge.FAvg, 1e-9)
	require.InDelta(t, 1.0, evaluation.Challenge.FSetup1, 1e-9)
}

func TestEvaluateEmptyFrames(t *testing.T) {
	// Zero ground truths and zero detections: all scores are 0, no
	// arithmetic errors
	dataset := `{"dataset": {"sequences": [{
		"id": 1, "path": "/test01-0-1/frames/", "exhaustive": 1,
		"frames": [{"id": 1, "image_file_name": "a.jpg", "roll": 0, "pitch": 0,
			"water_edges": [{"x_axis": [0, 99], "y_axis": [10, 10]}]}]
	}]}}`
	results := `{"dataset": {"sequences": [{"id": 1, "frames": [{"id": 1}]}]}}`
	datasetFile, resultsFile := writeTestData(t, dataset, results)

	evaluation, err := LoadAndEvaluate(logs.NewTestingLog(t), datasetFile, resultsFile, nil, nil)
	require.NoError(t, err)
	for _, run := range evaluation.Runs {
		for b := SizeBucket(0); b < numBuckets; b++ {
			require.Equal(t, 0.0, run.Result.Buckets[b].F)
		}
	}
	require.Equal(t, 0.0, evaluation.Challenge.FAvg)
}

func TestEvaluateSequenceSubset(t *testing.T) {
	datasetFile, resultsFile := writeTestData(t, testDataset, testResults)
	dataset, err := mods.LoadDataset(datasetFile)
	require.NoError(t, err)
	results, err := mods.LoadResults(resultsFile)
	require.NoError(t, err)

	evaluator := NewEvaluator(logs.NewTestingLog(t), nil)

	// Restricting to a sequence that exists works
	run, err := evaluator.EvaluateSetup(dataset, results, Setup1, &Options{Sequences: []int{1}})
	require.NoError(t, err)
	require.Equal(t, Counts{TP: 1}, run.Tally.Counts(BucketAll))

	// Restricting to a missing sequence is an error, not a silent 0
	_, err = evaluator.EvaluateSetup(dataset, results, Setup1, &Options{Sequences: []int{99}})
	require.Error(t, err)
}

func TestEvaluateMismatchedResults(t *testing.T) {
	// Results referencing a frame set that differs from the dataset abort
	// the setup run
	mismatched := `{"dataset": {"sequences": [{"id": 1, "frames": [{"id": 1}]}]}}`
	datasetFile, resultsFile := writeTestData(t, testDataset, mismatched)

	_, err := LoadAndEvaluate(logs.NewTestingLog(t), datasetFile, resultsFile, nil, nil)
	require.ErrorIs(t, err, mods.ErrSequenceMismatch)
}

func TestEvaluateProgressCallback(t *testing.T) {
	datasetFile, resultsFile := writeTestData(t, testDataset, testResults)
	dataset, err := mods.LoadDataset(datasetFile)
	require.NoError(t, err)
	results, err := mods.LoadResults(resultsFile)
	require.NoError(t, err)

	calls := 0
	_, err = NewEvaluator(logs.NewTestingLog(t), nil).EvaluateAll(dataset, results, &Options{
		Progress: func(setup Setup, done, total int) {
			calls++
			require.Equal(t, 1, total)
			require.Equal(t, 1, done)
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls) // once per sequence per setup
}
