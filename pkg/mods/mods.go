// Package mods models the MODS benchmark dataset and the detection results
// submitted against it. The evaluation core consumes these records; it never
// reparses the JSON files itself.
package mods

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/geom"
)

// Box marshals as the MODS-style [x, y, width, height] JSON array.
type Box geom.Rect

func (b Box) Rect() geom.Rect {
	return geom.Rect(b)
}

func (b *Box) UnmarshalJSON(data []byte) error {
	var arr []float32
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 4 {
		return fmt.Errorf("bbox must have 4 elements, got %v", len(arr))
	}
	b.X, b.Y, b.Width, b.Height = arr[0], arr[1], arr[2], arr[3]
	return nil
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float32{b.X, b.Y, b.Width, b.Height})
}

// WaterEdge is one annotated segment of the waterline in a frame.
type WaterEdge struct {
	XAxis []float32 `json:"x_axis"`
	YAxis []float32 `json:"y_axis"`
}

// Obstacle is a ground-truth annotation. Type "negative" marks a region that
// must be excluded from scoring, rather than an actual obstacle.
type Obstacle struct {
	ID   int     `json:"id"`
	Type string  `json:"type"`
	Bbox Box     `json:"bbox"`
	Area float32 `json:"area"`
}

func (o *Obstacle) IsNegative() bool {
	return o.Type == "negative"
}

// Frame holds the ground-truth annotations of a single video frame.
// Roll and pitch are the IMU readings used to derive the danger zone.
type Frame struct {
	ID            int         `json:"id"`
	ImageFileName string      `json:"image_file_name"`
	Roll          float64     `json:"roll"`
	Pitch         float64     `json:"pitch"`
	WaterEdges    []WaterEdge `json:"water_edges"`
	Exhaustive    *int        `json:"exhaustive,omitempty"`
	Obstacles     []Obstacle  `json:"obstacles"`
}

// Sequence is one contiguous recording of the dataset.
type Sequence struct {
	ID         int      `json:"id"`
	Path       string   `json:"path"`
	Exhaustive int      `json:"exhaustive"`
	Mask       string   `json:"mask,omitempty"`
	Frames     []*Frame `json:"frames"`
}

// IsExhaustive reports whether the given frame of this sequence is
// exhaustively annotated. The sequence-wide flag gates the per-frame one:
// a frame can only override it when the sequence flag is set.
func (s *Sequence) IsExhaustive(f *Frame) bool {
	if s.Exhaustive <= 0 {
		return false
	}
	if f.Exhaustive != nil {
		return *f.Exhaustive > 0
	}
	return true
}

// BaseName extracts the camera/sequence base name from the frames path,
// e.g. "/kope100-00006790-00007090/frames/" -> "kope100". The calibration
// filename is derived from it.
func (s *Sequence) BaseName() string {
	return strings.SplitN(s.Name(), "-", 2)[0]
}

// Name extracts the full sequence name from the frames path,
// e.g. "/kope100-00006790-00007090/frames/" -> "kope100-00006790-00007090".
func (s *Sequence) Name() string {
	parts := strings.Split(s.Path, "/")
	for _, p := range parts {
		if p != "" {
			return p
		}
	}
	return s.Path
}

// CalibrationFile returns the path of this sequence's camera calibration file,
// relative to the dataset root.
func (s *Sequence) CalibrationFile(root string) string {
	return filepath.Join(root, "calibration", fmt.Sprintf("calibration-%v.yaml", s.BaseName()))
}

// StaticMaskFile returns the path of the sequence-wide static ignore mask.
// The 'mask' attribute of the metadata does not store the correct filename,
// which is always ignore_mask.png.
func (s *Sequence) StaticMaskFile(root string) string {
	return filepath.Join(root, "sequences", s.Name(), "ignore_mask.png")
}

// Dataset is the ground-truth side of an evaluation: the parsed mods.json.
type Dataset struct {
	Sequences []*Sequence `json:"sequences"`

	// Root is the directory holding the dataset JSON file. Calibration files
	// and static masks are resolved relative to it.
	Root string `json:"-"`
}

// Detection is one reported bounding box for a frame. Type is either a small
// integer class code or one of the recognized class names; use ParseClass.
type Detection struct {
	ID   int `json:"id"`
	Type any `json:"type"`
	Bbox Box `json:"bbox"`
}

// ResultFrame holds the detections reported for one frame. A missing
// detections list is equivalent to an empty one.
type ResultFrame struct {
	ID         int         `json:"id"`
	Detections []Detection `json:"detections"`
}

type ResultSequence struct {
	ID     int            `json:"id"`
	Frames []*ResultFrame `json:"frames"`
}

// Results is the submission side of an evaluation: the parsed detection
// results JSON.
type Results struct {
	Sequences []*ResultSequence `json:"sequences"`
}

// Both the dataset and the results files wrap their payload in a
// top-level "dataset" object.
type datasetFile struct {
	Dataset Dataset `json:"dataset"`
}

type resultsFile struct {
	Dataset Results `json:"dataset"`
}

// LoadDataset reads and parses a MODS dataset JSON file (mods.json).
func LoadDataset(filename string) (*Dataset, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read dataset file %v: %w", filename, err)
	}
	wrapper := datasetFile{}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("Failed to parse dataset file %v: %w", filename, err)
	}
	ds := wrapper.Dataset
	ds.Root = filepath.Dir(filename)
	return &ds, nil
}

// LoadResults reads and parses a detection results JSON file.
func LoadResults(filename string) (*Results, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read results file %v: %w", filename, err)
	}
	wrapper := resultsFile{}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("Failed to parse results file %v: %w", filename, err)
	}
	return &wrapper.Dataset, nil
}
