package eval

import (
	"encoding/json"
	"os"
)

// Config holds the benchmark's calibrated constants. The matching logic never
// hardcodes these, so the engine stays reusable across benchmark revisions.
type Config struct {
	// CoverageThreshold is the minimum overlap-to-annotation-area ratio for a
	// detection to count as covering a ground-truth obstacle.
	CoverageThreshold float32 `json:"coverageThreshold"`

	// Size-bucket area cutoffs, in pixels. An obstacle is small if its area
	// is <= SmallAreaMax, medium if <= MediumAreaMax, large otherwise.
	SmallAreaMax  float32 `json:"smallAreaMax"`
	MediumAreaMax float32 `json:"mediumAreaMax"`

	// MaskOverlapThreshold is the fraction of a bounding box that must lie in
	// the ignore region before the box is excluded from matching.
	MaskOverlapThreshold float32 `json:"maskOverlapThreshold"`

	// Danger-zone construction parameters
	DangerZoneRange        float64 `json:"dangerZoneRange"`        // meters
	DangerZoneCameraHeight float64 `json:"dangerZoneCameraHeight"` // meters
	DangerZoneCameraFOV    float64 `json:"dangerZoneCameraFOV"`    // degrees
	DangerZoneImageMargin  int     `json:"dangerZoneImageMargin"`  // pixels
}

// DefaultConfig returns the constants of the published benchmark methodology.
// The estimated camera HFoV is actually around 66 degrees, but 80 is used so
// that at least one sampled zone point projects beyond the image borders.
func DefaultConfig() *Config {
	return &Config{
		CoverageThreshold:      0.3,
		SmallAreaMax:           32 * 32,
		MediumAreaMax:          96 * 96,
		MaskOverlapThreshold:   0.5,
		DangerZoneRange:        15,
		DangerZoneCameraHeight: 1.0,
		DangerZoneCameraFOV:    80,
		DangerZoneImageMargin:  10,
	}
}

// LoadConfig reads evaluation constants from a JSON file.
func LoadConfig(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	if err := json.Unmarshal(b, config); err != nil {
		return nil, err
	}
	return config, nil
}

// BucketForArea classifies a pixel area into a size bucket.
func (c *Config) BucketForArea(area float32) SizeBucket {
	switch {
	case area <= c.SmallAreaMax:
		return BucketSmall
	case area <= c.MediumAreaMax:
		return BucketMedium
	default:
		return BucketLarge
	}
}
