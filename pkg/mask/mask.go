// Package mask builds and queries per-frame validity masks. A mask covers the
// frame's pixel grid; a pixel value of 1 means "ignore" (outside the region
// in which matching is evaluated), matching the convention of the benchmark's
// ignore_mask.png files.
package mask

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/geom"
)

type Mask struct {
	Width  int
	Height int
	pix    []uint8
}

// New creates a mask with every pixel valid.
func New(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		pix:    make([]uint8, width*height),
	}
}

// NewIgnoreAll creates a mask with every pixel ignored.
func NewIgnoreAll(width, height int) *Mask {
	m := New(width, height)
	for i := range m.pix {
		m.pix[i] = 1
	}
	return m
}

// Ignored returns true if pixel (x,y) is outside the valid region.
// Out-of-image pixels are ignored.
func (m *Mask) Ignored(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return true
	}
	return m.pix[y*m.Width+x] != 0
}

func (m *Mask) set(x, y int, ignore bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if ignore {
		m.pix[y*m.Width+x] = 1
	} else {
		m.pix[y*m.Width+x] = 0
	}
}

// Or merges another ignore mask into this one.
func (m *Mask) Or(o *Mask) error {
	if m.Width != o.Width || m.Height != o.Height {
		return fmt.Errorf("mask size mismatch: %vx%v vs %vx%v", m.Width, m.Height, o.Width, o.Height)
	}
	for i, v := range o.pix {
		if v != 0 {
			m.pix[i] = 1
		}
	}
	return nil
}

// MarkRect marks every pixel covered by the rect as ignored. Used for
// "negative" annotations, which punch exclusion regions into the frame.
func (m *Mask) MarkRect(r geom.Rect) {
	x1, y1 := int(roundf(r.X)), int(roundf(r.Y))
	x2, y2 := x1+int(roundf(r.Width)), y1+int(roundf(r.Height))
	for y := max(0, y1); y < min(m.Height, y2); y++ {
		for x := max(0, x1); x < min(m.Width, x2); x++ {
			m.pix[y*m.Width+x] = 1
		}
	}
}

// IgnoredFraction returns the fraction of the box's pixels that fall in the
// ignore region. The denominator is the full box area, so a box hanging off
// the image edge counts its out-of-image part as ignored.
func (m *Mask) IgnoredFraction(r geom.Rect) float32 {
	x1, y1 := int(roundf(r.X)), int(roundf(r.Y))
	w, h := int(roundf(r.Width)), int(roundf(r.Height))
	if w <= 0 || h <= 0 {
		return 1
	}
	ignored := w * h
	for y := max(0, y1); y < min(m.Height, y1+h); y++ {
		for x := max(0, x1); x < min(m.Width, x1+w); x++ {
			if m.pix[y*m.Width+x] == 0 {
				ignored--
			}
		}
	}
	return float32(ignored) / float32(w*h)
}

// BboxIgnored reports whether the box lies (mostly) outside the valid
// region, and must therefore be excluded from matching. thr is the
// benchmark's mask-overlap threshold.
func (m *Mask) BboxIgnored(r geom.Rect, thr float32) bool {
	return m.IgnoredFraction(r) > thr
}

// CountIgnored returns the number of ignored pixels, for diagnostics.
func (m *Mask) CountIgnored() int {
	n := 0
	for _, v := range m.pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// fillPolygon rasterizes the polygon and writes 'ignore' into every covered
// pixel. gg renders anti-aliased, so coverage is thresholded at 50%.
func (m *Mask) fillPolygon(pts []geom.Point, ignore bool) {
	if len(pts) < 3 {
		return
	}
	dc := gg.NewContext(m.Width, m.Height)
	dc.MoveTo(float64(pts[0].X), float64(pts[0].Y))
	for _, p := range pts[1:] {
		dc.LineTo(float64(p.X), float64(p.Y))
	}
	dc.ClosePath()
	dc.SetRGB(1, 1, 1)
	dc.Fill()

	img := dc.Image()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r >= 0x8000 {
				m.set(x, y, ignore)
			}
		}
	}
}

// LoadStatic loads a sequence-wide static ignore mask (ignore_mask.png).
// Any non-zero pixel is treated as ignore.
func LoadStatic(filename string) (*Mask, error) {
	img, err := gg.LoadPNG(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to load static mask %v: %w", filename, err)
	}
	return fromImage(img), nil
}

func fromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if r > 0 || g > 0 || bl > 0 {
				m.pix[y*m.Width+x] = 1
			}
		}
	}
	return m
}

func roundf(v float32) float32 {
	if v >= 0 {
		return float32(int(v + 0.5))
	}
	return float32(int(v - 0.5))
}
