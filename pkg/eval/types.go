// Package eval is the matching-and-scoring engine of the evaluation toolkit.
// For every frame it decides which detections correspond to which
// ground-truth obstacles under one of three evaluation setups, and folds the
// per-frame confusion counts into dataset-level precision/recall/F scores.
package eval

import (
	"fmt"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/geom"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mods"
)

// SizeBucket classifies ground-truth obstacles by pixel area. BucketAll is
// the pseudo-bucket that aggregates everything, and the only legal bucket for
// a false positive that cannot be attributed to any ground truth.
type SizeBucket int

const (
	BucketAll SizeBucket = iota
	BucketSmall
	BucketMedium
	BucketLarge
	numBuckets
)

func (b SizeBucket) String() string {
	switch b {
	case BucketAll:
		return "all"
	case BucketSmall:
		return "small"
	case BucketMedium:
		return "medium"
	case BucketLarge:
		return "large"
	}
	return fmt.Sprintf("bucket(%v)", int(b))
}

// MaskVariant selects which validity mask a setup evaluates within.
type MaskVariant int

const (
	MaskSeaEdge MaskVariant = iota
	MaskDangerZone
)

// Setup is one of the three fixed evaluation configurations. They share the
// matching machinery and differ only in mask variant and class sensitivity.
type Setup int

const (
	// Setup1: sea-edge mask, classes must match (detection and recognition)
	Setup1 Setup = 1
	// Setup2: sea-edge mask, class-agnostic (detection without recognition)
	Setup2 Setup = 2
	// Setup3: danger-zone mask, class-agnostic
	Setup3 Setup = 3
)

func AllSetups() []Setup {
	return []Setup{Setup1, Setup2, Setup3}
}

func (s Setup) ClassAware() bool {
	return s == Setup1
}

func (s Setup) MaskVariant() MaskVariant {
	if s == Setup3 {
		return MaskDangerZone
	}
	return MaskSeaEdge
}

func (s Setup) String() string {
	return fmt.Sprintf("Setup %v", int(s))
}

// Key is the stable identifier used in reports ("setup1" .. "setup3").
func (s Setup) Key() string {
	return fmt.Sprintf("setup%v", int(s))
}

// Detection is one reported bounding box, immutable once loaded.
type Detection struct {
	ID    int
	Class mods.Class
	Box   geom.Rect
}

// GroundTruth is one annotated obstacle. Area is the annotated pixel area
// when the benchmark supplies one (it can be tighter than the box for
// irregular obstacles); the box area is the fallback.
type GroundTruth struct {
	ID     int
	Class  mods.Class
	Box    geom.Rect
	Area   float32
	Ignore bool
}

// PixelArea returns the area used for coverage ratios and size bucketing.
func (g *GroundTruth) PixelArea() float32 {
	if g.Area > 0 {
		return g.Area
	}
	return g.Box.Area()
}

// MalformedGeometryError reports a bounding box with non-positive width or
// height. It is fatal for the offending frame's matching call; silently
// skipping the frame would corrupt the dataset-level micro-average.
type MalformedGeometryError struct {
	Kind string // "detection" or "annotation"
	ID   int
	Box  geom.Rect
}

func (e *MalformedGeometryError) Error() string {
	return fmt.Sprintf("malformed %v geometry (id %v): box %vx%v has non-positive size",
		e.Kind, e.ID, e.Box.Width, e.Box.Height)
}
