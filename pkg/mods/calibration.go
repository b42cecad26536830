package mods

import (
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Calibration holds the stereo rig's left-camera parameters needed to project
// world points into the image: the 3x3 intrinsics matrix, the distortion
// coefficients (k1, k2, p1, p2, k3), and the image size.
type Calibration struct {
	CameraMatrix *mat.Dense
	DistCoeffs   []float64
	ImageWidth   int
	ImageHeight  int
}

type opencvMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

type calibrationYAML struct {
	M1        opencvMatrix `yaml:"M1"`
	D1        opencvMatrix `yaml:"D1"`
	ImageSize []int        `yaml:"imageSize"`
}

// LoadCalibration reads a camera calibration file in the OpenCV FileStorage
// YAML dialect. The %YAML directive and the !!opencv-matrix tags are not
// valid YAML 1.1/1.2 for a generic decoder, so they are stripped before
// decoding.
func LoadCalibration(filename string) (*Calibration, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read calibration file %v: %w", filename, err)
	}

	lines := strings.Split(string(raw), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "%YAML") {
			continue
		}
		cleaned = append(cleaned, strings.ReplaceAll(line, "!!opencv-matrix", ""))
	}

	parsed := calibrationYAML{}
	if err := yaml.Unmarshal([]byte(strings.Join(cleaned, "\n")), &parsed); err != nil {
		return nil, fmt.Errorf("Failed to parse calibration file %v: %w", filename, err)
	}

	if parsed.M1.Rows != 3 || parsed.M1.Cols != 3 || len(parsed.M1.Data) != 9 {
		return nil, fmt.Errorf("Calibration file %v: M1 is not a 3x3 matrix", filename)
	}
	if len(parsed.D1.Data) == 0 {
		return nil, fmt.Errorf("Calibration file %v: D1 is missing", filename)
	}
	if len(parsed.ImageSize) != 2 {
		return nil, fmt.Errorf("Calibration file %v: imageSize must have 2 elements", filename)
	}

	return &Calibration{
		CameraMatrix: mat.NewDense(3, 3, parsed.M1.Data),
		DistCoeffs:   parsed.D1.Data,
		ImageWidth:   parsed.ImageSize[0],
		ImageHeight:  parsed.ImageSize[1],
	}, nil
}
