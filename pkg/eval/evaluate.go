package eval

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mask"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mods"
)

// Options controls one evaluation run.
type Options struct {
	// Sequences optionally restricts the run to a subset of sequence IDs.
	Sequences []int

	// Progress, if set, is invoked after each sequence of each setup.
	Progress func(setup Setup, done, total int)
}

// ErrorSummary aggregates the recoverable per-detection errors of a run,
// keyed by sequence ID. Results with rejected detections are incomplete, so
// these are reported, never silently dropped.
type ErrorSummary struct {
	RejectedDetections map[int]int `json:"rejectedDetections,omitempty"`
	Total              int         `json:"total"`
}

func (e *ErrorSummary) add(sequenceID int) {
	if e.RejectedDetections == nil {
		e.RejectedDetections = map[int]int{}
	}
	e.RejectedDetections[sequenceID]++
	e.Total++
}

func (e *ErrorSummary) Empty() bool {
	return e.Total == 0
}

// SetupRun is the outcome of evaluating one setup over the dataset.
type SetupRun struct {
	Setup   Setup
	Tally   ConfusionTally
	Result  SetupResult
	Errors  ErrorSummary
	Elapsed time.Duration
}

// Evaluation collects the three setup runs and the challenge score.
// A failed setup leaves a nil entry; the other setups are unaffected.
type Evaluation struct {
	Runs      map[Setup]*SetupRun
	Challenge ChallengeResult
}

// Evaluator drives the three evaluation setups over a dataset.
type Evaluator struct {
	log logs.Log
	cfg *Config

	// calibration cache, keyed by sequence base name
	calibrations map[string]*mods.Calibration
}

func NewEvaluator(logger logs.Log, cfg *Config) *Evaluator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Evaluator{
		log:          logger,
		cfg:          cfg,
		calibrations: map[string]*mods.Calibration{},
	}
}

// EvaluateAll runs all three setups. Setups are independent: if one fails,
// its error is reported and the remaining setups still run. The challenge
// score is only computed when all three succeed.
func (e *Evaluator) EvaluateAll(dataset *mods.Dataset, results *mods.Results, opts *Options) (*Evaluation, error) {
	evaluation := &Evaluation{Runs: map[Setup]*SetupRun{}}
	var failures []error
	for _, setup := range AllSetups() {
		e.log.Infof("Evaluating %v...", setup)
		run, err := e.EvaluateSetup(dataset, results, setup, opts)
		if err != nil {
			e.log.Errorf("%v failed: %v", setup, err)
			failures = append(failures, fmt.Errorf("%v: %w", setup, err))
			continue
		}
		e.log.Infof("Evaluation complete in %.2f seconds", run.Elapsed.Seconds())
		evaluation.Runs[setup] = run
	}
	if len(failures) > 0 {
		return evaluation, errors.Join(failures...)
	}
	evaluation.Challenge = ChallengeScore(
		evaluation.Runs[Setup1].Result,
		evaluation.Runs[Setup2].Result,
		evaluation.Runs[Setup3].Result,
	)
	return evaluation, nil
}

// EvaluateSetup runs one setup over the dataset (optionally restricted to a
// sequence subset) and returns its accumulated result.
func (e *Evaluator) EvaluateSetup(dataset *mods.Dataset, results *mods.Results, setup Setup, opts *Options) (*SetupRun, error) {
	if opts == nil {
		opts = &Options{}
	}
	start := time.Now()

	dataset = dataset.Select(opts.Sequences)
	results = results.Select(opts.Sequences)
	if len(dataset.Sequences) == 0 {
		return nil, fmt.Errorf("no sequences selected for evaluation")
	}

	pairs, err := mods.PairSequences(dataset, results)
	if err != nil {
		return nil, err
	}

	run := &SetupRun{Setup: setup}
	tally := NewTally()
	for i, pair := range pairs {
		// One tally per sequence, merged exactly once, so the accumulation
		// discipline stays correct if sequences ever run on parallel workers
		seqTally := NewTally()
		if err := e.evaluateSequence(dataset.Root, pair, setup, seqTally, &run.Errors); err != nil {
			return nil, fmt.Errorf("sequence %v: %w", pair.Dataset.ID, err)
		}
		tally.Merge(seqTally)
		if opts.Progress != nil {
			opts.Progress(setup, i+1, len(pairs))
		}
	}

	run.Tally = *tally
	run.Result = Finalize(tally)
	run.Elapsed = time.Since(start)
	if !run.Errors.Empty() {
		e.log.Warnf("%v: rejected %v detections with invalid class or geometry", setup, run.Errors.Total)
	}
	return run, nil
}

func (e *Evaluator) calibration(root string, seq *mods.Sequence) (*mods.Calibration, error) {
	base := seq.BaseName()
	if calib, ok := e.calibrations[base]; ok {
		return calib, nil
	}
	calib, err := mods.LoadCalibration(seq.CalibrationFile(root))
	if err != nil {
		return nil, err
	}
	e.calibrations[base] = calib
	return calib, nil
}

func (e *Evaluator) evaluateSequence(root string, pair mods.SequencePair, setup Setup, tally *ConfusionTally, errs *ErrorSummary) error {
	seq := pair.Dataset

	calib, err := e.calibration(root, seq)
	if err != nil {
		return err
	}

	var static *mask.Mask
	if seq.Mask != "" {
		static, err = mask.LoadStatic(seq.StaticMaskFile(root))
		if err != nil {
			return err
		}
	}

	frames, err := pair.PairFrames()
	if err != nil {
		return err
	}

	for _, fp := range frames {
		m := e.frameMask(seq, fp.Dataset, setup, calib)
		if static != nil {
			if err := m.Or(static); err != nil {
				return err
			}
		}

		gts := make([]GroundTruth, 0, len(fp.Dataset.Obstacles))
		for _, obstacle := range fp.Dataset.Obstacles {
			if obstacle.IsNegative() {
				// Negative annotations punch exclusion regions into the mask
				m.MarkRect(obstacle.Bbox.Rect())
				continue
			}
			class, err := mods.ParseClass(obstacle.Type)
			if err != nil {
				return fmt.Errorf("frame %v: annotation %v: %w", fp.Dataset.ID, obstacle.ID, err)
			}
			if !setup.ClassAware() {
				class = mods.ClassAgnostic
			}
			gts = append(gts, GroundTruth{
				ID:    obstacle.ID,
				Class: class,
				Box:   obstacle.Bbox.Rect(),
				Area:  obstacle.Area,
			})
		}

		dets := make([]Detection, 0, len(fp.Results.Detections))
		for _, det := range fp.Results.Detections {
			class, err := mods.ParseClass(det.Type)
			if err != nil {
				// Recoverable: reject the single detection, count it in the
				// error summary, keep evaluating
				errs.add(seq.ID)
				continue
			}
			if !det.Bbox.Rect().IsValid() {
				errs.add(seq.ID)
				continue
			}
			if !setup.ClassAware() {
				class = mods.ClassAgnostic
			}
			dets = append(dets, Detection{
				ID:    det.ID,
				Class: class,
				Box:   det.Bbox.Rect(),
			})
		}

		outcome, err := MatchFrame(dets, gts, m, setup.ClassAware(), e.cfg)
		if err != nil {
			// Detections were pre-validated, so this is corrupt ground truth
			return fmt.Errorf("frame %v: %w", fp.Dataset.ID, err)
		}
		tally.Add(outcome)
	}
	return nil
}

// frameMask composes the frame's validity mask for the given setup.
// Frames that are not exhaustively annotated cannot be scored against the
// sea-edge mask (unannotated obstacles would surface as false positives), so
// they are ignored entirely outside danger-zone mode.
func (e *Evaluator) frameMask(seq *mods.Sequence, frame *mods.Frame, setup Setup, calib *mods.Calibration) *mask.Mask {
	w, h := calib.ImageWidth, calib.ImageHeight
	dz := func() *mask.Mask {
		return mask.FromDangerZone(mask.DangerZoneParams{
			Roll:         frame.Roll,
			Pitch:        frame.Pitch,
			CameraHeight: e.cfg.DangerZoneCameraHeight,
			Range:        e.cfg.DangerZoneRange,
			CameraFOV:    e.cfg.DangerZoneCameraFOV,
			ImageMargin:  e.cfg.DangerZoneImageMargin,
		}, calib)
	}

	if seq.IsExhaustive(frame) {
		if setup.MaskVariant() == MaskDangerZone {
			return dz()
		}
		return mask.FromSeaEdge(frame.WaterEdges, w, h)
	}
	if setup.MaskVariant() == MaskDangerZone {
		return dz()
	}
	return mask.NewIgnoreAll(w, h)
}

// LoadAndEvaluate is the one-call convenience wrapper used by the CLI: load
// both files, run all three setups.
func LoadAndEvaluate(logger logs.Log, datasetFile, resultsFile string, cfg *Config, opts *Options) (*Evaluation, error) {
	if _, err := os.Stat(datasetFile); err != nil {
		return nil, fmt.Errorf("dataset file %v: %w", datasetFile, err)
	}
	dataset, err := mods.LoadDataset(datasetFile)
	if err != nil {
		return nil, err
	}
	results, err := mods.LoadResults(resultsFile)
	if err != nil {
		return nil, err
	}
	return NewEvaluator(logger, cfg).EvaluateAll(dataset, results, opts)
}
