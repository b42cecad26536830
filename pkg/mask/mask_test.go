package mask

import (
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/geom"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mods"
)

func TestMaskBasics(t *testing.T) {
	m := New(10, 10)
	require.False(t, m.Ignored(5, 5))
	require.True(t, m.Ignored(-1, 5))
	require.True(t, m.Ignored(5, 10))
	require.Equal(t, 0, m.CountIgnored())

	m.MarkRect(geom.Rect{X: 0, Y: 0, Width: 5, Height: 10})
	require.True(t, m.Ignored(0, 0))
	require.True(t, m.Ignored(4, 9))
	require.False(t, m.Ignored(5, 0))
	require.Equal(t, 50, m.CountIgnored())

	all := NewIgnoreAll(3, 3)
	require.Equal(t, 9, all.CountIgnored())
}

func TestMaskOr(t *testing.T) {
	a := New(10, 10)
	a.MarkRect(geom.Rect{X: 0, Y: 0, Width: 2, Height: 2})
	b := New(10, 10)
	b.MarkRect(geom.Rect{X: 8, Y: 8, Width: 2, Height: 2})
	require.NoError(t, a.Or(b))
	require.True(t, a.Ignored(0, 0))
	require.True(t, a.Ignored(9, 9))
	require.False(t, a.Ignored(5, 5))

	require.Error(t, a.Or(New(5, 5)))
}

func TestBboxIgnored(t *testing.T) {
	m := New(100, 100)
	m.MarkRect(geom.Rect{X: 0, Y: 0, Width: 100, Height: 50})

	// Box fully in the valid half
	require.False(t, m.BboxIgnored(geom.Rect{X: 10, Y: 60, Width: 20, Height: 20}, 0.5))
	// Box fully in the ignore half
	require.True(t, m.BboxIgnored(geom.Rect{X: 10, Y: 10, Width: 20, Height: 20}, 0.5))
	// Box straddling the boundary: exactly half ignored, not above threshold
	require.False(t, m.BboxIgnored(geom.Rect{X: 10, Y: 40, Width: 20, Height: 20}, 0.5))
	// Mostly in the ignore half
	require.True(t, m.BboxIgnored(geom.Rect{X: 10, Y: 35, Width: 20, Height: 20}, 0.5))

	// A box hanging off the image counts the outside part as ignored
	require.True(t, m.BboxIgnored(geom.Rect{X: 90, Y: 60, Width: 40, Height: 10}, 0.5))
}

func TestFromSeaEdge(t *testing.T) {
	edges := []mods.WaterEdge{{
		XAxis: []float32{0, 50, 100},
		YAxis: []float32{50, 50, 50},
	}}
	m := FromSeaEdge(edges, 100, 100)

	// Sky above the waterline is ignored, water below is valid
	require.True(t, m.Ignored(50, 10))
	require.True(t, m.Ignored(10, 40))
	require.False(t, m.Ignored(50, 90))
	require.False(t, m.Ignored(10, 60))
}

func TestFromSeaEdgeEmpty(t *testing.T) {
	m := FromSeaEdge(nil, 50, 50)
	require.Equal(t, 0, m.CountIgnored())
}

func flatCalibration() *mods.Calibration {
	return &mods.Calibration{
		CameraMatrix: mat.NewDense(3, 3, []float64{
			100, 0, 50,
			0, 100, 50,
			0, 0, 1,
		}),
		DistCoeffs:  []float64{0, 0, 0, 0, 0},
		ImageWidth:  100,
		ImageHeight: 100,
	}
}

func TestEstimatePlaneFromIMU(t *testing.T) {
	a, b, c, d := estimatePlaneFromIMU(0, 0, 1)
	require.InDelta(t, 0, a, 1e-9)
	require.InDelta(t, 0, b, 1e-9)
	// Flat sea: normal straight up, plane one unit below the camera
	require.InDelta(t, -1.0, -(d / c), 1e-9)
}

func TestFromDangerZone(t *testing.T) {
	p := DangerZoneParams{
		Roll:         0,
		Pitch:        0,
		CameraHeight: 1.0,
		Range:        15,
		CameraFOV:    80,
		ImageMargin:  10,
	}
	m := FromDangerZone(p, flatCalibration())

	// On a flat sea with this calibration the zone border straight ahead
	// projects to v = 100*(1/15)+50 = ~56.7. Below the border is valid,
	// above it is ignored.
	require.False(t, m.Ignored(50, 80))
	require.True(t, m.Ignored(50, 30))
	require.True(t, m.Ignored(50, 0))
}

func TestLoadStatic(t *testing.T) {
	// Render a mask image: white left half, black right half
	dc := gg.NewContext(20, 10)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(0, 0, 10, 10)
	dc.Fill()

	path := filepath.Join(t.TempDir(), "ignore_mask.png")
	require.NoError(t, gg.SavePNG(path, dc.Image()))

	m, err := LoadStatic(path)
	require.NoError(t, err)
	require.Equal(t, 20, m.Width)
	require.Equal(t, 10, m.Height)
	require.True(t, m.Ignored(2, 5))
	require.False(t, m.Ignored(15, 5))
}
