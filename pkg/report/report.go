// Package report renders evaluation output in the two formats the challenge
// tooling consumes: a human readable summary for the terminal, and the
// canonical evaluation_results.json layout that the submission server parses.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/eval"
)

// Report is the canonical machine readable result layout. Each setup maps to
// four F scores in fixed order: overall, small, medium, large. The field names
// and ordering are load bearing, do not change them.
type Report struct {
	Setup1 []float64 `json:"setup1"`
	Setup2 []float64 `json:"setup2"`
	Setup3 []float64 `json:"setup3"`
}

// New builds a Report from a completed evaluation. All three setups must be
// present.
func New(ev *eval.Evaluation) (*Report, error) {
	r := &Report{}
	for setup, dst := range map[eval.Setup]*[]float64{
		eval.Setup1: &r.Setup1,
		eval.Setup2: &r.Setup2,
		eval.Setup3: &r.Setup3,
	} {
		run, ok := ev.Runs[setup]
		if !ok {
			return nil, fmt.Errorf("evaluation has no result for %v", setup)
		}
		scores := run.Result.FScores()
		*dst = scores[:]
	}
	return r, nil
}

// Save writes the report as evaluation_results.json style output.
func (r *Report) Save(filename string) error {
	raw, err := json.MarshalIndent(r, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, raw, 0644)
}

// Load reads a previously saved report.
func Load(filename string) (*Report, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	r := &Report{}
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("failed to parse report %v: %w", filename, err)
	}
	for name, scores := range map[string][]float64{"setup1": r.Setup1, "setup2": r.Setup2, "setup3": r.Setup3} {
		if len(scores) != 4 {
			return nil, fmt.Errorf("report %v: %v has %v scores, expected 4", filename, name, len(scores))
		}
	}
	return r, nil
}

// WriteSummary prints the per-setup F scores in the extended terminal format.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "Results: F_all F_small F_medium F_large\n")
	for i, scores := range [][]float64{r.Setup1, r.Setup2, r.Setup3} {
		fmt.Fprintf(w, "Setup_%d: %.03f %.03f %.03f %.03f\n", i+1, scores[0], scores[1], scores[2], scores[3])
	}
}

// WriteChallenge prints the final challenge line. This exact format is what
// the leaderboard scraper reads from stdout.
func WriteChallenge(w io.Writer, c eval.ChallengeResult) {
	fmt.Fprintf(w, "Challenge results (F_avg, F_s1, F_s2, F_s3):\n")
	fmt.Fprintf(w, "%.3f %.3f %.3f %.3f\n", c.FAvg, c.FSetup1, c.FSetup2, c.FSetup3)
}

// WriteCounts prints the raw confusion counts per setup and size bucket, for
// digging into where a score comes from.
func WriteCounts(w io.Writer, ev *eval.Evaluation) {
	for _, setup := range eval.AllSetups() {
		run, ok := ev.Runs[setup]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%v:\n", setup)
		for b := eval.BucketAll; b <= eval.BucketLarge; b++ {
			score := run.Result.Buckets[b]
			fmt.Fprintf(w, "  %-7v TP=%-6d FP=%-6d FN=%-6d P=%.3f R=%.3f F=%.3f\n",
				b, score.TP, score.FP, score.FN, score.Precision, score.Recall, score.F)
		}
	}
}
