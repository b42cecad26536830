// Package geom provides the bounding-box and point primitives shared by the
// dataset model, the validity masks, and the matching engine.
package geom

import (
	"github.com/chewxy/math32"
)

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y))
}

// Rect is an axis-aligned bounding box in image coordinates.
// MODS annotations store boxes as [x, y, width, height], and fractional
// coordinates are legal, so we keep float32 throughout.
type Rect struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

func (r Rect) X2() float32 {
	return r.X + r.Width
}

func (r Rect) Y2() float32 {
	return r.Y + r.Height
}

func (r Rect) Area() float32 {
	return r.Width * r.Height
}

// IsValid returns true if the box has positive extent in both dimensions.
func (r Rect) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := math32.Max(r.X, b.X)
	y1 := math32.Max(r.Y, b.Y)
	x2 := math32.Min(r.X2(), b.X2())
	y2 := math32.Min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  math32.Max(0, x2-x1),
		Height: math32.Max(0, y2-y1),
	}
}

func (r Rect) IntersectionArea(b Rect) float32 {
	return r.Intersection(b).Area()
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	intersection := r.IntersectionArea(b)
	return intersection / (r.Area() + b.Area() - intersection)
}

func (r Rect) Center() Point {
	return Point{
		X: r.X + r.Width/2,
		Y: r.Y + r.Height/2,
	}
}

func (r *Rect) Offset(dx, dy float32) {
	r.X += dx
	r.Y += dy
}
