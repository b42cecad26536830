package mods

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrSequenceMismatch means the results file does not cover the same
// sequences or frames as the dataset. Scores computed over a mismatched
// frame set are meaningless, so this aborts the evaluation run.
var ErrSequenceMismatch = errors.New("dataset and results sequences do not match")

// SequencePair joins a dataset sequence with its counterpart from the
// results file. Pairing is by sequence ID, not by array position.
type SequencePair struct {
	Dataset *Sequence
	Results *ResultSequence
}

// FramePair joins a ground-truth frame with its reported detections.
type FramePair struct {
	Dataset *Frame
	Results *ResultFrame
}

// Select returns a copy of the dataset restricted to the given sequence IDs.
// An empty ID list selects everything.
func (d *Dataset) Select(ids []int) *Dataset {
	if len(ids) == 0 {
		return d
	}
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := &Dataset{Root: d.Root}
	for _, seq := range d.Sequences {
		if keep[seq.ID] {
			out.Sequences = append(out.Sequences, seq)
		}
	}
	return out
}

// Select returns a copy of the results restricted to the given sequence IDs.
func (r *Results) Select(ids []int) *Results {
	if len(ids) == 0 {
		return r
	}
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := &Results{}
	for _, seq := range r.Sequences {
		if keep[seq.ID] {
			out.Sequences = append(out.Sequences, seq)
		}
	}
	return out
}

// PairSequences matches dataset sequences to result sequences by ID.
// Every dataset sequence must have exactly one counterpart.
func PairSequences(d *Dataset, r *Results) ([]SequencePair, error) {
	if len(d.Sequences) != len(r.Sequences) {
		return nil, fmt.Errorf("%w: dataset has %v sequences, results have %v",
			ErrSequenceMismatch, len(d.Sequences), len(r.Sequences))
	}
	byID := make(map[int]*ResultSequence, len(r.Sequences))
	for _, seq := range r.Sequences {
		byID[seq.ID] = seq
	}
	pairs := make([]SequencePair, 0, len(d.Sequences))
	for _, seq := range d.Sequences {
		res, ok := byID[seq.ID]
		if !ok {
			return nil, fmt.Errorf("%w: results are missing sequence %v", ErrSequenceMismatch, seq.ID)
		}
		pairs = append(pairs, SequencePair{Dataset: seq, Results: res})
	}
	// Stable ordering by ID, in case the files shuffle sequences around
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Dataset.ID < pairs[j].Dataset.ID })
	return pairs, nil
}

// PairFrames matches a sequence pair's frames by frame ID.
func (p *SequencePair) PairFrames() ([]FramePair, error) {
	if len(p.Dataset.Frames) != len(p.Results.Frames) {
		return nil, fmt.Errorf("%w: sequence %v has %v annotated frames but %v result frames",
			ErrSequenceMismatch, p.Dataset.ID, len(p.Dataset.Frames), len(p.Results.Frames))
	}
	byID := make(map[int]*ResultFrame, len(p.Results.Frames))
	for _, f := range p.Results.Frames {
		byID[f.ID] = f
	}
	pairs := make([]FramePair, 0, len(p.Dataset.Frames))
	for _, f := range p.Dataset.Frames {
		res, ok := byID[f.ID]
		if !ok {
			return nil, fmt.Errorf("%w: sequence %v results are missing frame %v",
				ErrSequenceMismatch, p.Dataset.ID, f.ID)
		}
		pairs = append(pairs, FramePair{Dataset: f, Results: res})
	}
	return pairs, nil
}

// ParseSequenceList parses a comma-separated list of sequence IDs with
// optional ranges, e.g. "1,3-5,9" -> [1 3 4 5 9]. Invalid tokens are an
// error rather than a warning, because silently skipping a sequence would
// change the evaluated frame set.
func ParseSequenceList(s string) ([]int, error) {
	ids := map[int]bool{}
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		elements := strings.SplitN(token, "-", 2)
		switch len(elements) {
		case 1:
			id, err := strconv.Atoi(elements[0])
			if err != nil {
				return nil, fmt.Errorf("invalid sequence list token %q", token)
			}
			ids[id] = true
		case 2:
			lo, err1 := strconv.Atoi(elements[0])
			hi, err2 := strconv.Atoi(elements[1])
			if err1 != nil || err2 != nil || hi < lo {
				return nil, fmt.Errorf("invalid sequence range %q", token)
			}
			for i := lo; i <= hi; i++ {
				ids[i] = true
			}
		}
	}
	out := make([]int, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}
